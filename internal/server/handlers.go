package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"golang.org/x/sync/errgroup"
)

type sourceInfo struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Platforms []string `json:"platforms"`
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	res := make([]sourceInfo, 0)
	for _, src := range s.resolver.Registry().Sources() {
		res = append(res, sourceInfo{
			Name:      src.Name(),
			Type:      src.Type(),
			Platforms: src.Platforms().Strings(),
		})
	}
	s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), res)
	s.writeJSON(w, res)
}

// latest returns the latest version of a source, sharing cached results
// between the single and the batch endpoint.
func (s *Server) latest(ctx context.Context, name string) (string, error) {
	src, err := s.resolver.Registry().Find(name)
	if err != nil {
		return "", err
	}
	k := s.getCacheKeyWithPrefix(cacheKeyPrefixLatest, src.Name())
	if v, ok := s.getFromCache(ctx, k); ok {
		return v.(string), nil
	}
	version, err := s.resolver.CheckLatest(ctx, src.Name())
	if err != nil {
		return "", err
	}
	s.setInCache(ctx, k, version)
	return version, nil
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	version, err := s.latest(r.Context(), sourceName)
	if err != nil {
		s.writeJSONError(w, r, statusCodeForError(err), err)
		return
	}
	res := &manifest.LatestResponse{Source: sourceName, Version: version}
	s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), res)
	s.writeJSON(w, res)
}

func (s *Server) resolveFromRequest(r *http.Request) (*manifest.FetchManifest, int, error) {
	platform, err := manifest.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	m, err := s.resolver.Resolve(r.Context(), chi.URLParam(r, "source"), chi.URLParam(r, "version"), platform)
	if err != nil {
		return nil, statusCodeForError(err), err
	}
	return m, http.StatusOK, nil
}

func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	m, code, err := s.resolveFromRequest(r)
	if err != nil {
		s.writeJSONError(w, r, code, err)
		return
	}
	s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), m)
	s.writeJSON(w, m)
}

func (s *Server) batchLatest(w http.ResponseWriter, r *http.Request) {
	// limit request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	batchRequest := new(manifest.BatchLatestRequest)
	if err := json.NewDecoder(r.Body).Decode(batchRequest); err != nil {
		s.writeJSONError(w, r, http.StatusBadRequest, err, "could not decode request")
		return
	}
	if err := batchRequest.Validate(); err != nil {
		s.writeJSONError(w, r, http.StatusBadRequest, err)
		return
	}

	res := &manifest.BatchLatestResponse{
		Versions: make(map[string]string),
		Errors:   make(map[string]string),
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(max(s.config.BatchConcurrency, 1))
	for _, name := range batchRequest.Sources {
		g.Go(func() error {
			version, err := s.latest(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[name] = err.Error()
				return nil
			}
			res.Versions[name] = version
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Errors) == 0 {
		res.Errors = nil
	} else {
		s.requestLogger(r).Warnf("%d of %d sources failed", len(res.Errors), len(batchRequest.Sources))
	}
	s.writeJSON(w, res)
}

func (s *Server) getInstalled(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	platform, err := manifest.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		s.writeJSONError(w, r, http.StatusBadRequest, err)
		return
	}
	src, err := s.resolver.Registry().Find(sourceName)
	if err != nil {
		s.writeJSONError(w, r, statusCodeForError(err), err)
		return
	}
	version, err := s.store.InstalledVersion(r.Context(), src.Name(), platform)
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not get installed version")
		return
	}
	s.writeJSON(w, &manifest.InstalledVersion{Source: src.Name(), Platform: platform.String(), Version: version})
}

func (s *Server) recordInstalled(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	sourceName := chi.URLParam(r, "source")
	platform, err := manifest.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		s.writeJSONError(w, r, http.StatusBadRequest, err)
		return
	}
	src, err := s.resolver.Registry().Find(sourceName)
	if err != nil {
		s.writeJSONError(w, r, statusCodeForError(err), err)
		return
	}
	if !src.Platforms().Has(platform) {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("%s does not support %s", src.Name(), platform))
		return
	}

	var req struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, r, http.StatusBadRequest, err, "could not decode request")
		return
	}
	if req.Version == "" {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("version is missing"))
		return
	}

	s.requestLogger(r).Infof("recording %s@%s for %s", src.Name(), req.Version, platform)
	if err := s.store.RecordInstalled(r.Context(), src.Name(), platform, req.Version); err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not record installed version")
		return
	}
	s.writeJSON(w, &manifest.InstalledVersion{Source: src.Name(), Platform: platform.String(), Version: req.Version})
}
