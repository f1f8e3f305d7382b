package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// pages maps GET routes to files in the static directory.
var pages = map[string]string{
	"/{$}":              "index.html",
	"/index.html":       "index.html",
	"/convert.html":     "convert.html",
	"/analytics.html":   "analytics.html",
	"/chat.html":        "sqlbot_chat.html",
	"/sqlbot_chat.html": "sqlbot_chat.html",
	"/chat":             "sqlbot_chat.html",
	"/chat/":            "sqlbot_chat.html",
}

func (s *Server) page(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(filepath.Join(s.plan.StaticDir, name))
		if err != nil {
			writeError(w, http.StatusNotFound, "Page not found: "+name)
			return
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			writeError(w, http.StatusNotFound, "Page not found: "+name)
			return
		}
		// ServeFile would redirect /index.html to /
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

func (s *Server) staticFiles() http.Handler {
	dir := filepath.Join(s.plan.StaticDir, "static")
	return http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
}
