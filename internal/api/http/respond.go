package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/apperr"
)

const maxBodyBytes = 8 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case apperr.Inconsistent:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the JSON error envelope. Internal errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	k := apperr.KindOf(err)
	if k == apperr.Internal || k == apperr.UpstreamUnavailable || k == apperr.Inconsistent {
		log.Error("request failed", zap.String("kind", k.String()), zap.Error(err))
	}
	writeJSON(w, statusFor(k), errorBody{Code: k.String(), Message: apperr.Message(err)})
}

// decodeJSON reads a bounded JSON body. Numbers decode as json.Number so
// integer answers keep their exact text.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Invalidf("http.decode", "request body exceeds %d bytes", tooBig.Limit)
		}
		if errors.Is(err, io.EOF) {
			return apperr.Invalidf("http.decode", "request body is empty")
		}
		return apperr.Invalidf("http.decode", "bad json: %v", err)
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
