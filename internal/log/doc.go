// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, API keys)
//   - Partial redaction of credentials carried in URL query strings
//   - Configurable log levels with verbose mode support
//
// # Security Features
//
// Blog APIs behind a CDN are frequently protected by a preview token or an
// API key passed either as a header (configured under "headers" in
// .postfetch) or as a query parameter on the API base URL. The fetcher logs
// origins and request paths at debug level, so the SecureHandler:
//   - Masks attributes whose key names a credential (Authorization, Cookie, X-Api-Key, token, ...)
//   - Masks values that look like credentials (JWTs, Bearer/Basic headers, AWS keys)
//   - Rewrites URLs so that only the credential query parameters are masked
//
// Content digests and cache keys are long hex strings that would otherwise
// trip the "long alphanumeric" heuristic; they are listed as safe keys and
// always logged verbatim.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("request failed",
//	    "origin", "https://api.example.com?token=abc", // logged as ...?token=***REDACTED***
//	    "x-api-key", "k-123",                          // logged as ***REDACTED***
//	)
package log
