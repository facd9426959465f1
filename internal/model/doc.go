// Package model defines the data structures shared by the fetch layer, the
// cache stores and the assembly engine.
//
// This package contains the following main types:
//   - ResourceRequest: One logical fetch against a resource path
//   - CacheEntry: A payload remembered by a cache store
//   - DocumentManifest: How a document is split into text and image chunks
//   - Chunk: One fetched unit of a split document
//   - MonolithicDocument: The single-payload form of a document
//   - AssembledDocument: What the rendering layer mounts
//
// Wire types mirror the JSON served by the blog API. Parse functions are
// lenient about missing fields and strict about the fields that decide which
// delivery path is taken (a numeric totalChunks, a string html).
package model
