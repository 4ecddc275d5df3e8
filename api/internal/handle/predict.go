package handle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/ocr"
	"ffmemes-ocr/api/internal/store"
	"ffmemes-ocr/api/internal/util"
)

const defaultDeadline = 180 * time.Second

// Predict runs OCR on the raw image in the request body.
//
//	POST /predict?lang=ru   body: image bytes (application/octet-stream)
//
// 200 with [[quad, text], ...] on success, 200 with {"error": "Cannot
// identify image file"} when the body is not an image.
func (h *Handle) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	log := h.log.With("request_id", reqID)
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read body: "+err.Error())
		return
	}

	rawLang := string(ocr.DefaultLanguage)
	if q := r.URL.Query(); q.Has("lang") {
		rawLang = q.Get("lang")
	}
	lang := ocr.ParseLanguage(rawLang)
	model := h.models.Select(lang)

	rec := store.Record{
		RequestID: reqID,
		ImageHash: util.SHA256Hex(body),
		Lang:      rawLang,
		Model:     model.Variant().String(),
	}

	img, format, err := ocr.DecodeImage(body)
	if errors.Is(err, ocr.ErrImageTooLarge) {
		log.Infow("image rejected", "bytes", len(body), "err", err)
		rec.Error = err.Error()
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		h.record(log, rec, start)
		return
	}
	if err != nil {
		log.Infow("unidentified image", "bytes", len(body), "mime", util.SniffMimeHTTP(body), "err", err)
		rec.Error = ocr.MsgCannotIdentifyImage
		writeError(w, http.StatusOK, ocr.MsgCannotIdentifyImage)
		h.record(log, rec, start)
		return
	}
	gray := ocr.Grayscale(img)
	log.Debugw("image decoded", "format", format, "size", gray.Bounds().Size(), "elapsed", time.Since(start).Round(time.Millisecond))

	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r))
	defer cancel()

	res, err := model.ReadText(ctx, gray, ocr.ReadOptions{Paragraph: true})
	if err != nil {
		log.Errorw("recognition failed", "model", rec.Model, "err", err)
		rec.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "recognition timed out")
		} else {
			writeError(w, http.StatusInternalServerError, "recognition failed")
		}
		h.record(log, rec, start)
		return
	}

	log.Infow("ocr done", "lang", rawLang, "model", rec.Model, "detections", len(res), "elapsed", time.Since(start).Round(time.Millisecond))
	writeJSON(w, http.StatusOK, res)

	rec.Detections = len(res)
	rec.Text = strings.Join(res.Texts(), "\n")
	h.record(log, rec, start)
}

// record hands the request to the auditor. Audit problems are only logged.
func (h *Handle) record(log *zap.SugaredLogger, rec store.Record, start time.Time) {
	if h.audit == nil {
		return
	}
	rec.Duration = time.Since(start)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.audit.Record(ctx, rec); err != nil {
		log.Warnw("audit failed", "err", err)
	}
}

// requestDeadline reads X-Request-Timeout or ?timeoutSec= (seconds). Values
// above defaultDeadline are capped so the 504 fits in the server WriteTimeout.
func requestDeadline(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	v, _ := strconv.Atoi(ts)
	if v <= 0 || time.Duration(v) >= defaultDeadline/time.Second {
		return defaultDeadline
	}
	return time.Duration(v) * time.Second
}
