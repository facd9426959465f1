package model

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// DefaultAPIPrefix is the path prefix under which the blog API is served.
const DefaultAPIPrefix = "/api"

// Cache key prefixes. Each logical resource owns its own key space so that
// manifests, chunks and full documents never overwrite one another.
const (
	manifestKeyPrefix = "manifest:"
	chunkKeyPrefix    = "chunk:"
	documentKeyPrefix = "doc:"

	// SiteConfigCacheKey is the cache key for the site configuration.
	SiteConfigCacheKey = "config"
)

// ResourceRequest identifies one logical fetch.
// A request is created per fetch and discarded after it resolves.
type ResourceRequest struct {
	// Path is the resource path relative to an origin, including any query.
	Path string

	// CacheKey names the cache entry backing this request.
	// An empty key disables cache-aside reads and writes for the request.
	CacheKey string

	// RevalidateOnStale re-issues the request with a cache-busting parameter
	// when an origin answers 304 and nothing is cached under CacheKey.
	RevalidateOnStale bool
}

// CacheEntry is a payload remembered by a cache store.
type CacheEntry struct {
	// Key is the cache key (see ResourceRequest.CacheKey).
	Key string `json:"key"`

	// Payload is the raw JSON document returned by the origin.
	Payload json.RawMessage `json:"payload"`

	// ETag is the entity tag the origin returned with Payload, if any.
	ETag string `json:"etag,omitempty"`

	// LastModified is the Last-Modified header value, if any.
	LastModified string `json:"last_modified,omitempty"`

	// Digest is a hex content digest of Payload, filled in by the store.
	Digest string `json:"digest,omitempty"`

	// UpdatedAt is when the entry was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasValidators reports whether the entry can back a conditional request.
func (e *CacheEntry) HasValidators() bool {
	return e != nil && (e.ETag != "" || e.LastModified != "")
}

// ManifestRequest builds the request for a document's chunk manifest.
func ManifestRequest(prefix, documentID string) ResourceRequest {
	return ResourceRequest{
		Path:              postPath(prefix, documentID) + "?chunked=1",
		CacheKey:          manifestKeyPrefix + documentID,
		RevalidateOnStale: true,
	}
}

// ChunkRequest builds the request for chunk index of a document.
// Chunks are immutable for a given manifest, so 304 is never revalidated.
func ChunkRequest(prefix, documentID string, index int) ResourceRequest {
	return ResourceRequest{
		Path:              postPath(prefix, documentID) + "/chunk/" + strconv.Itoa(index),
		CacheKey:          chunkKeyPrefix + documentID + ":" + strconv.Itoa(index),
		RevalidateOnStale: false,
	}
}

// DocumentRequest builds the request for the monolithic form of a document.
func DocumentRequest(prefix, documentID string) ResourceRequest {
	return ResourceRequest{
		Path:              postPath(prefix, documentID),
		CacheKey:          documentKeyPrefix + documentID,
		RevalidateOnStale: true,
	}
}

// SiteConfigRequest builds the request for the site configuration.
func SiteConfigRequest(prefix string) ResourceRequest {
	return ResourceRequest{
		Path:              normalizePrefix(prefix) + "/config",
		CacheKey:          SiteConfigCacheKey,
		RevalidateOnStale: true,
	}
}

// VersionRequest builds the request for the version heartbeat.
// The heartbeat is never cached: a stale version defeats its purpose.
func VersionRequest(prefix string) ResourceRequest {
	return ResourceRequest{
		Path: normalizePrefix(prefix) + "/version",
	}
}

func postPath(prefix, documentID string) string {
	return normalizePrefix(prefix) + "/post/" + url.PathEscape(documentID)
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return DefaultAPIPrefix
	}
	for len(prefix) > 1 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	if prefix == "/" {
		return ""
	}
	return prefix
}
