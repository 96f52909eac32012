// Package models defines the domain entities shared by the drivecast engines.
//
// The package contains two categories of types:
//
// 1. Remote values: immutable data read from the remote store
//   - [FolderRef] : a folder on the navigation path
//   - [RemoteEntry] : one child of a listed folder, classified by [Classify]
//
// 2. Persisted state: snapshots written by the progress store
//   - [StoryProgress] : resumable position within one story
//   - [UserProfile] : cached account display data
//
// [Mode] and [Access] name the engine that owns the playback surface and the
// access mode a story was opened with.
package models
