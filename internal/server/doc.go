// Package server provides the loopback HTTP server that completes the interactive sign-in.
//
// # Routing
//
// [CallbackRouter] serves GET-only routes over [http.ServeMux]. [Middleware] added with Use wraps
// every route; the first one added sees each request first. [Logging] records method, path, status
// and duration at debug level.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter,
// exchanges the code for a token and sends exactly one result through a channel.
// Later callbacks are rejected.
//
// # Callback Server
//
// [ServeCallback] binds the configured loopback address, runs a hook once the listener is up
// (typically opening the browser), waits for the handler's result or context cancellation and
// shuts the server down before returning.
package server
