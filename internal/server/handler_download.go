package server

import (
	"net/http"
)

// downloadArtifact redirects to the primary artifact of a manifest.
func (s *Server) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	k := s.getCacheKeyFromRequest(r)
	if cached, ok := s.getFromCache(r.Context(), k); ok {
		http.Redirect(w, r, cached.(string), http.StatusFound)
		return
	}
	m, code, err := s.resolveFromRequest(r)
	if err != nil {
		s.writeJSONError(w, r, code, err)
		return
	}
	s.setInCache(r.Context(), k, m.URL[0])
	http.Redirect(w, r, m.URL[0], http.StatusFound)
}
