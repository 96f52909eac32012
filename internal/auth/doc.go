// Package auth owns the user's credential and its lifecycle.
//
// # States
//
// A [Manager] moves between [SignedOut], [SignedIn] and [Expired]. [Public] is a separate named
// state for token-less browsing of shared folders; it is never represented by a missing credential.
//
//	SignedOut --SignIn--> SignedIn --401 / expiry--> Expired --renewal--> SignedIn --SignOut--> SignedOut
//
// # Authorized Requests
//
// [Manager.AuthorizedFetch] attaches the bearer token. A 401 moves the manager to [Expired], is reported
// as [shared.ErrCredentialExpired] and is never retried. Subscribers registered with
// [Manager.Subscribe] are told about every transition.
//
// # Renewal
//
// [Manager.RenewSilently] asks the [TokenProvider] for a token without user interaction and gives up
// after the configured timeout. [Manager.RenewInteractive] is the fallback and always available.
// [Manager.Start] runs a background refresher that renews silently shortly before the assumed expiry.
//
// # Persistence
//
// The credential is stored in the key-value store so a restart resumes in [SignedIn], or in [Expired]
// when the stored credential is already past its expiry.
package auth
