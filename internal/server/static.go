package server

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleStatic serves the build output. Directories resolve to their default
// document, and any path that does not exist falls back to the root default
// document so client-side routes load the app. Until the first build has
// produced that document a waiting page is served instead.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)
	f, info := s.open(urlPath)
	if f != nil && info.IsDir() {
		f.Close()
		f, info = s.open(path.Join(urlPath, s.opts.DefaultDocument))
	}
	if f == nil {
		f, info = s.open("/" + s.opts.DefaultDocument)
	}
	if f == nil || info.IsDir() {
		if f != nil {
			f.Close()
		}
		s.serveWaiting(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", s.cacheControl())
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// open resolves a cleaned URL path inside the output directory. Dot-files
// are never served; they include the temp files of an in-progress copy.
func (s *Server) open(urlPath string) (*os.File, fs.FileInfo) {
	for _, segment := range strings.Split(urlPath, "/") {
		if strings.HasPrefix(segment, ".") {
			return nil, nil
		}
	}

	f, err := os.Open(filepath.Join(s.opts.OutputDir, filepath.FromSlash(urlPath)))
	if err != nil {
		return nil, nil
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil
	}

	return f, info
}

func (s *Server) cacheControl() string {
	if s.opts.CacheMaxAge <= 0 {
		return "no-cache"
	}

	return fmt.Sprintf("max-age=%d", int(s.opts.CacheMaxAge.Seconds()))
}
