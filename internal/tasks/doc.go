// Package tasks runs long-lived story operations with real-time progress reporting.
//
// # Downloads
//
// [Downloader.Download] copies every audio file and text chapter of a story folder to local disk:
//
//  1. Lists the story folder on the remote store
//  2. Fetches each file through a bounded worker pool, rate limited per request
//  3. Tags downloaded mp3 files with their title and the story name
//  4. Records each file in the download repository and writes a JSON manifest
//
// A failed file does not abort the run; it is reported in the result and the manifest.
// Files already recorded with a matching copy on disk are skipped unless forced.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
