// Package repositories implements SQLite persistence for drivecast.
//
// Key Implementations:
//   - [KVRepository] : string key/value slots holding the credential, preferences, the last session and story history
//   - [DownloadRepository] : offline copies of story files, keyed by story and file
//
// Both operate on a *sql.DB opened and migrated by [shared.OpenStore].
package repositories
