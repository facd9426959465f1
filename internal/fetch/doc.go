// Package fetch implements the resilient resource-fetch layer.
//
// A Fetcher performs one logical fetch of a JSON resource. It tries every
// configured origin in order (the primary API origin, any extra origins,
// and finally the relative origin served next to the site itself) and
// tolerates the failure modes a CDN in front of an API tends to produce:
//   - 304 Not Modified answers to requests the client never made
//     conditional, or made conditional against an entry it has since lost
//   - HTML error pages served in place of JSON
//   - plain network errors and non-2xx statuses
//
// Successful payloads are written to a cache.Store under the request's
// cache key; when every origin fails, the cached payload is returned
// instead. Fetch never returns an error: callers only ever see a payload
// or nil, and decide for themselves what an absence means.
//
// # HTTP client
//
// NewHTTPClient builds the *http.Client used by a Fetcher. It can route
// traffic through a SOCKS5 proxy (golang.org/x/net/proxy) and injects the
// configured User-Agent and headers into every request, including
// cache-busting retries.
package fetch
