// Package server provides the short-lived HTTP listener used by the Tidal authorization code flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] logs each request through charmbracelet/log.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), hands the code to an exchange function
// (which carries the PKCE verifier), and sends the result through a channel. It only processes one callback.
//
// # Callback Server
//
// [CallbackServer] binds the listen address up front, so a busy port fails immediately, serves the router in the
// background, and [CallbackServer.Wait] blocks until the callback arrives or the context ends.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
