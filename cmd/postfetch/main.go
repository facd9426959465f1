// Package main provides the entry point for the postfetch CLI.
//
// postfetch assembles blog posts the way the blog front end does: it loads
// a chunk manifest, fetches text chunks in parallel, verifies every image
// placeholder, falls back to the monolithic document when verification
// fails, and hydrates images in the background. Every request walks a list
// of API origins and falls back to a local cache.
//
// Usage:
//
//	postfetch assemble --site-url https://blog.example.com hello-world
//	postfetch watch --site-url https://blog.example.com
//
// See --help for all available options.
package main

// main is the entry point for postfetch.
func main() {
	Execute()
}
