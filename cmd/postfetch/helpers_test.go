package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const testMarker = `<div class=\"img-ph\" data-ph=\"ph1\"><div class=\"lazy-spinner\"></div></div>`

// blogServer is an httptest stand-in for the post API.
type blogServer struct {
	*httptest.Server

	// payloads maps "<path>" or "<path>?chunked=1" to a JSON body.
	payloads map[string]string

	// docsVersion is served by /api/version and bumped by tests.
	docsVersion atomic.Int64

	requests atomic.Int64
}

func newBlogServer(t *testing.T) *blogServer {
	t.Helper()

	s := &blogServer{payloads: map[string]string{
		"/api/config": `{"siteName":"Notes"}`,

		// chunked post with one image
		"/api/post/hello?chunked=1": `{"title":"Hello","date":"2025-01-02","totalChunks":2,"chunk_types":["text","image"],"ph_ids":[null,"ph1"]}`,
		"/api/post/hello/chunk/0":   `{"html":"<h2 id=\"intro\">Intro</h2>` + testMarker + `"}`,
		"/api/post/hello/chunk/1":   `{"html":"<img src=\"/a.webp\">"}`,

		// no chunked form
		"/api/post/plain": `{"title":"Plain","content_html":"<p>plain</p>"}`,

		// second text chunk missing
		"/api/post/broken?chunked=1": `{"title":"Broken","totalChunks":2,"chunk_types":["text","text"]}`,
		"/api/post/broken/chunk/0":   `{"html":"<p>first</p>"}`,
		"/api/post/broken":           `{"title":"Broken","content_html":"<p>whole</p>"}`,
	}}
	s.docsVersion.Store(1)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if r.URL.Path == "/api/version" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"docsVersion":%d,"configVersion":1}`, s.docsVersion.Load())
			return
		}

		key := r.URL.Path
		if r.URL.Query().Get("chunked") == "1" {
			key += "?chunked=1"
		}
		body, ok := s.payloads[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

// runRoot executes the root command with args and returns stdout, stderr
// and the command error.
func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
