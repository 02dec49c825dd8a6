package server

import (
	"net/http"
	"time"
)

// Paths served by the fixture site.
const (
	PathPosts    = "/posts"
	PathNotJSON  = "/posts.txt"
	PathBroken   = "/static/broken.js"
	PathMissing  = "/static/missing.png"
	PathSlow     = "/static/slow.png"
	PathRedirect = "/static/redirect.js"
	PathApp      = "/static/app.js"
)

// SlowDelay is how long PathSlow waits before answering 404. It is longer
// than the default network idle window.
const SlowDelay = 1500 * time.Millisecond

func newMux(posts []byte) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(HTMLPage))
	})

	mux.HandleFunc("/static/site.css", staticHandler("text/css", siteCSS))
	mux.HandleFunc(PathApp, staticHandler("application/javascript", appJS))

	// Browsers ask for it unprompted; answer 200 so it never shows as broken.
	mux.HandleFunc("/favicon.ico", staticHandler("image/x-icon", ""))

	mux.HandleFunc(PathBroken, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	mux.HandleFunc(PathRedirect, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, PathApp, http.StatusFound)
	})

	mux.HandleFunc(PathSlow, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(SlowDelay):
		case <-r.Context().Done():
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc(PathPosts, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(posts)
	})

	mux.HandleFunc(PathNotJSON, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(posts)
	})

	return mux
}

func staticHandler(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}
}
