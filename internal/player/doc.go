// Package player is the playback surface: an external audio command for tracks and an external
// text-to-speech command for narration.
//
// [ExecPlayer] spawns one player process per play run (mpv by default, ffplay understood) and tracks
// the position with a wall clock scaled by the speed multiplier, since the process is not queried.
// Durations come from ffprobe and titles from ID3 tags when present.
package player
