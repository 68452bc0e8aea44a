package server

import (
	"errors"
	"io/fs"
	"net/http"

	"jarconsole/internal/routes"
)

// mountRouteTable exposes the page tree: redirect routes answer 302 and
// component routes serve their lazily built view.
func (s *Server) mountRouteTable() {
	mounted := make(map[string]bool)
	for _, entry := range s.routes.Entries() {
		full := entry.FullPath
		if mounted[full] {
			continue
		}
		switch {
		case entry.Route.Component != nil:
			s.router.Get(full, s.servePage)
		case entry.Route.Redirect != "":
			s.router.Get(full, s.serveRedirect)
		default:
			continue
		}
		mounted[full] = true
	}
}

func (s *Server) serveRedirect(w http.ResponseWriter, r *http.Request) {
	chain, err := s.routes.Redirect(r.URL.Path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("route redirect failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(chain) == 0 {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, chain[len(chain)-1], http.StatusFound)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	match, err := s.routes.Resolve(r.URL.Path)
	if err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	view, err := match.Load()
	if err != nil {
		s.logger.Error().Err(err).Str("path", match.FullPath).Msg("load view")
		http.Error(w, "view unavailable", http.StatusInternalServerError)
		return
	}
	view.ServeHTTP(w, r)
}

// jarView builds the JAR service page from the embedded assets.
func (s *Server) jarView() (http.Handler, error) {
	page, err := fs.ReadFile(s.staticFS, "jar.html")
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}), nil
}
