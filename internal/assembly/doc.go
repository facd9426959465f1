// Package assembly turns a document id into a verified AssembledDocument.
//
// A view goes through the following states:
//
//	Start → ManifestRequested → {Chunked | Monolithic | LoadFailed}
//	Chunked → TextAssembling → TextVerified → ImagesHydrating → Done
//	                         ↘ IntegrityFailed → FallbackRequested → {Done | LoadFailed}
//	Monolithic → Done
//
// The Loader asks for the chunked manifest first and for the monolithic
// document when the server offers no chunked form. The Reassembler fetches
// every text chunk with bounded concurrency, joins on the whole set,
// concatenates in manifest order, and checks that every image placeholder
// appears exactly once. Any violation is an IntegrityError, which the
// Assembler answers by asking the FallbackController for the monolithic
// document. Image chunks are hydrated afterwards by the Hydrator without
// gating the view; a failed image leaves its placeholder empty and never
// triggers the fallback.
//
// Only ErrLoadFailed reaches the caller. Network failures are absorbed by
// the fetch layer, and integrity failures are recovered here.
package assembly
