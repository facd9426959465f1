// Package render is the rendering surface for assembled documents.
//
// Surface holds a parsed document body and implements assembly.Sink: image
// chunks replace their placeholder markers in place, and failed images
// leave an empty marker behind. BuildTOC derives a table of contents from
// headings when the server supplied none, and Page renders a standalone
// HTML page around a document.
package render
