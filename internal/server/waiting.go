package server

import (
	"net/http"

	"github.com/a-h/templ"
)

func (s *Server) serveWaiting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(waitingPage(s.opts.LivePath), templ.WithStatus(http.StatusServiceUnavailable)).ServeHTTP(w, r)
}
