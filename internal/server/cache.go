package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-semantic-release/source-resolver/internal/metrics"
	"github.com/patrickmn/go-cache"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

type (
	cacheKeyPrefix string
	cacheKey       string
)

const (
	cacheKeyPrefixRequest cacheKeyPrefix = "request"
	cacheKeyPrefixLatest  cacheKeyPrefix = "latest"
)

func (s *Server) getCacheKeyFromRequest(r *http.Request) cacheKey {
	return cacheKey(fmt.Sprintf("%s/%s:%s", cacheKeyPrefixRequest, r.Method, r.URL.EscapedPath()))
}

func (s *Server) getCacheKeyWithPrefix(p cacheKeyPrefix, key string) cacheKey {
	return cacheKey(fmt.Sprintf("%s/%s", p, key))
}

func (s *Server) getFromCache(ctx context.Context, k cacheKey) (any, bool) {
	if s.config.DisableRequestCache {
		return nil, false
	}
	strKey := string(k)
	val, ok := s.cache.Get(strKey)
	if ok {
		ctx, _ = tag.New(ctx, tag.Upsert(metrics.TagCacheKey, strKey))
		stats.Record(ctx, metrics.CounterCacheHit.M(1))
	}
	return val, ok
}

func (s *Server) setInCache(ctx context.Context, k cacheKey, v any, expiration ...time.Duration) {
	if s.config.DisableRequestCache {
		return
	}
	strKey := string(k)
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.TagCacheKey, strKey))
	stats.Record(ctx, metrics.CounterCacheMiss.M(1))
	exp := cache.DefaultExpiration
	if len(expiration) > 0 {
		exp = expiration[0]
	}
	s.cache.Set(strKey, v, exp)
}

func (s *Server) cacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if k, ok := s.getFromCache(r.Context(), s.getCacheKeyFromRequest(r)); ok {
			w.Header().Set("X-Go-Cache", "HIT")
			s.writeJSON(w, k)
			return
		}
		next.ServeHTTP(w, r)
	})
}
