// Package services defines the [Catalog] and [Target] interfaces and implements them for Discogs and Tidal.
//
// # Catalog Implementation
//
// [DiscogsService] authenticates with a personal access token sent in the Authorization header on every request.
// Collection pages are fetched 100 releases at a time, then each release is fetched for its tracklist and styles.
// Requests are throttled by a [rate.Limiter] to stay under the 60 requests per minute Discogs allows, and
// recoverable failures are retried with [shared.Retry].
//
// # Target Implementation
//
// [TidalService] talks to the Tidal v1 JSON API through an [oauth2] client that refreshes expired tokens.
// Tokens are obtained by [TidalAuth] with either the device authorization flow or an authorization code flow
// with PKCE and a local callback server.
//
// # Error Handling
//
// Both services map HTTP failures onto the sentinel errors from the shared package:
//   - 401/403 : [shared.ErrAuthentication]
//   - 404 : [shared.ErrNotFound]
//   - 429 : [shared.RateLimitError] (matches [shared.ErrRateLimited], carries Retry-After)
//   - 5xx and transport errors : [shared.ErrTransientNetwork]
//   - anything else : [shared.ErrAPIRequest]
//
// Only the Discogs client retries internally. Tidal calls are retried by the sync engine so that one policy
// governs searches and playlist mutations.
package services
