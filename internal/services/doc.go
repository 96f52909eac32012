// Package services implements the remote store client: listing folders and fetching file content from Google Drive.
//
// # Store Interface
//
// [Store] is the narrow surface the engines depend on. [DriveService] implements it against the Drive v3 REST API.
//
// # Access Modes
//
// Every call takes an [AuthMode]:
//   - [Authenticated] delegates to a [Fetcher] (the credential manager) which attaches the bearer token
//     and turns a 401 into a credential expiry.
//   - [Public] appends the static API key and sends no Authorization header. Public requests are never retried.
//
// # Pagination
//
// Listing follows nextPageToken until the store reports no further pages; callers only ever see the
// accumulated result. [DriveService.ListChildrenProgress] reports the running count after each page.
//
// # Error Handling
//
// Non-2xx responses become [*RemoteError], which unwraps to [shared.ErrRemoteRequest]. The message is taken
// from the API's error envelope when present.
package services
