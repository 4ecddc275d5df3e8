// Package tesseract implements ocr.Model on top of the gosseract client.
//
// A Handle owns a fixed pool of gosseract clients that share one tessdata
// directory. Clients are not safe for concurrent use, so every ReadText call
// borrows one from the pool for its duration.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/ocr"
)

// ErrModelNotProvisioned means the model directory lacks weight files. The
// handle never falls back to downloading them.
var ErrModelNotProvisioned = errors.New("model weights not provisioned")

const (
	// DetectorFile is the orientation/script detection model.
	DetectorFile = "osd.traineddata"
	fileExt      = ".traineddata"
)

// RecognizerFiles lists the per-language weight files of a variant.
func RecognizerFiles(v ocr.Variant) []string {
	langs := v.Languages()
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, l+fileExt)
	}
	return out
}

// RequiredFiles is the detector plus the recognizers of a variant.
func RequiredFiles(v ocr.Variant) []string {
	return append([]string{DetectorFile}, RecognizerFiles(v)...)
}

// MissingFiles reports which of the variant's files are absent from dir.
func MissingFiles(dir string, v ocr.Variant) []string {
	var missing []string
	for _, name := range RequiredFiles(v) {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || fi.IsDir() || fi.Size() == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

type options struct {
	workers int
	factory func() *gosseract.Client
}

type Option func(*options)

// WithWorkers sets how many recognitions a handle may run in parallel.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Handle is a loaded Tesseract model bound to one variant.
type Handle struct {
	variant ocr.Variant

	pool      chan *gosseract.Client
	size      int
	closeOnce sync.Once
}

// Load builds a handle from weights already present in dir. Missing weights
// fail with ErrModelNotProvisioned; a corrupt file fails on the warm-up pass.
func Load(dir string, v ocr.Variant, opts ...Option) (*Handle, error) {
	o := options{workers: 1, factory: gosseract.NewClient}
	for _, opt := range opts {
		opt(&o)
	}

	if missing := MissingFiles(dir, v); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s missing %s in %s", ErrModelNotProvisioned, v, strings.Join(missing, ", "), dir)
	}

	h := &Handle{
		variant: v,
		pool:    make(chan *gosseract.Client, o.workers),
	}
	warm := warmupImage()
	for i := 0; i < o.workers; i++ {
		c, err := newClient(o.factory, dir, v)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		if err := c.SetImageFromBytes(warm); err != nil {
			_ = c.Close()
			_ = h.Close()
			return nil, fmt.Errorf("warm up %s: %w", v, err)
		}
		if _, err := c.Text(); err != nil {
			_ = c.Close()
			_ = h.Close()
			return nil, fmt.Errorf("warm up %s: %w", v, err)
		}
		h.pool <- c
		h.size++
	}
	return h, nil
}

func newClient(factory func() *gosseract.Client, dir string, v ocr.Variant) (*gosseract.Client, error) {
	c := factory()
	if err := c.SetTessdataPrefix(dir); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set tessdata prefix: %w", err)
	}
	if err := c.SetLanguage(v.Languages()...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	// osd.traineddata работает как детектор: ориентация и скрипт страницы
	if err := c.SetPageSegMode(gosseract.PSM_AUTO_OSD); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	return c, nil
}

func warmupImage() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func (h *Handle) Variant() ocr.Variant { return h.variant }

// ReadText recognises text in a single-channel image. With Paragraph set the
// spans come from paragraph-level layout, otherwise from text lines.
func (h *Handle) ReadText(ctx context.Context, img *image.Gray, opt ocr.ReadOptions) (ocr.Result, error) {
	var c *gosseract.Client
	select {
	case c = <-h.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { h.pool <- c }()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	level := gosseract.RIL_TEXTLINE
	if opt.Paragraph {
		level = gosseract.RIL_PARA
	}
	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return toResult(boxes), nil
}

func toResult(boxes []gosseract.BoundingBox) ocr.Result {
	out := make(ocr.Result, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), " ")
		if text == "" {
			continue
		}
		out = append(out, ocr.Detection{Box: ocr.QuadFromRect(b.Box), Text: text})
	}
	return out
}

// Close releases every pooled client. It waits for in-flight calls to return
// their clients.
func (h *Handle) Close() error {
	var errs []error
	h.closeOnce.Do(func() {
		for i := 0; i < h.size; i++ {
			select {
			case c := <-h.pool:
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			case <-time.After(30 * time.Second):
				errs = append(errs, fmt.Errorf("close %s: client still busy", h.variant))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadModels loads the bilingual handle and then the English one, one after
// the other, from the same directory.
func LoadModels(dir string, device ocr.Device, workers int, log *zap.SugaredLogger) (*ocr.Models, error) {
	start := time.Now()
	opts := []Option{WithWorkers(workers)}

	ru, err := Load(dir, ocr.VariantBilingual, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ocr.VariantBilingual, err)
	}
	log.Infow("model loaded", "model", ocr.VariantBilingual.String(), "device", device, "elapsed", time.Since(start).Round(time.Millisecond))

	en, err := Load(dir, ocr.VariantEnglish, opts...)
	if err != nil {
		_ = ru.Close()
		return nil, fmt.Errorf("load %s: %w", ocr.VariantEnglish, err)
	}
	log.Infow("model loaded", "model", ocr.VariantEnglish.String(), "device", device, "elapsed", time.Since(start).Round(time.Millisecond))

	return &ocr.Models{Bilingual: ru, English: en, Device: device}, nil
}
