package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/config"
	"ffmemes-ocr/api/internal/ocr"
	"ffmemes-ocr/api/internal/store"
)

// Auditor receives one record per /predict call.
type Auditor interface {
	Record(ctx context.Context, rec store.Record) error
}

type Handle struct {
	models   *ocr.Models
	audit    Auditor
	ping     func(ctx context.Context) error
	log      *zap.SugaredLogger
	maxBytes int64
}

type Option func(*Handle)

func WithAuditor(a Auditor) Option { return func(h *Handle) { h.audit = a } }

// WithPing adds a dependency check to /healthz (database, for example).
func WithPing(ping func(ctx context.Context) error) Option {
	return func(h *Handle) { h.ping = ping }
}

func WithMaxImageBytes(n int64) Option {
	return func(h *Handle) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

func New(models *ocr.Models, log *zap.SugaredLogger, opts ...Option) *Handle {
	h := &Handle{
		models:   models,
		log:      log,
		maxBytes: config.DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the service routes on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/healthz", h.Healthz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ocr.ErrorResponse{Error: msg})
}
