package web

import (
	"io/fs"
	"net/http"
	"strings"
)

// spaHandler serves the single-page front end. Real asset paths are served
// from the assets filesystem; anything else (client-side routes like /home or
// /PendingResponses) gets the index.html shell at the requested path so deep
// links work.
type spaHandler struct {
	staticFS    http.Handler
	staticFiles fs.FS
}

func newSPAHandler(distFS fs.FS) *spaHandler {
	return &spaHandler{
		staticFS:    http.FileServer(http.FS(distFS)),
		staticFiles: distFS,
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	// The shell is always served directly, never through FileServer: the
	// FileServer answers /index.html with a redirect to ./ instead of the
	// page, which breaks deep links.
	if path == "" || path == "index.html" {
		serveFileFS(w, r, h.staticFiles, "index.html")
		return
	}

	f, err := h.staticFiles.Open(path)
	if err != nil {
		// Client-side route: serve the shell without changing the URL.
		serveFileFS(w, r, h.staticFiles, "index.html")
		return
	}
	f.Close()

	h.staticFS.ServeHTTP(w, r)
}

// serveFileFS matches the behavior of http.ServeFileFS, which is only
// available from Go 1.22; the build toolchain here is Go 1.21.
func serveFileFS(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string) {
	if containsDotDot(r.URL.Path) {
		http.Error(w, "invalid URL path", http.StatusBadRequest)
		return
	}
	f, err := http.FS(fsys).Open("/" + name)
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	d, err := f.Stat()
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, d.Name(), d.ModTime(), f)
}

func containsDotDot(v string) bool {
	if !strings.Contains(v, "..") {
		return false
	}
	for _, ent := range strings.FieldsFunc(v, func(r rune) bool { return r == '/' || r == '\\' }) {
		if ent == ".." {
			return true
		}
	}
	return false
}
