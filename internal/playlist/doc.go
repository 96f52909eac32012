// Package playlist orders the audio items of a folder and serves their content, prefetching the next
// item shortly before the current one ends.
//
// Content is cached by item ID. A foreground request for an item whose prefetch is still in flight
// waits for that prefetch instead of issuing a second request. Prefetch results for items that are no
// longer in the playlist are discarded.
package playlist
