package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/storage"
)

// MountAssets serves stored blobs (question diagrams) read-only.
func MountAssets(r chi.Router, bs storage.BlobStore, log *zap.Logger) {
	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, log, apperr.NotFoundf("assets.Get", "asset %s not found", key))
				return
			}
			writeError(w, log, apperr.Invalidf("assets.Get", "bad asset key"))
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", storage.ContentType(key))
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		// Inline SVG may carry script; serve it sandboxed.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		_, _ = io.Copy(w, rc)
	})
}

// Pinger is anything whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports liveness only.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings each dependency.
func Readyz(log *zap.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]string{}
		status := http.StatusOK
		for name, p := range deps {
			if err := p.Ping(r.Context()); err != nil {
				log.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				out[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		writeJSON(w, status, out)
	}
}
