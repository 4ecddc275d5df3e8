package ocr

import (
	"context"
	"errors"
	"image"
)

// Model is a loaded OCR model handle. Handles are built once at startup and
// are read-only afterwards; implementations must allow concurrent ReadText.
type Model interface {
	Variant() Variant
	ReadText(ctx context.Context, img *image.Gray, opt ReadOptions) (Result, error)
	Close() error
}

// ReadOptions tunes a single recognition call.
type ReadOptions struct {
	// Paragraph merges adjacent lines into paragraph-level spans.
	Paragraph bool
}

// Models is the service context: both handles plus the device they were
// loaded for. It is passed by pointer into handlers and never mutated.
type Models struct {
	Bilingual Model
	English   Model
	Device    Device
}

func (m *Models) Select(lang Language) Model {
	switch lang.Variant() {
	case VariantBilingual:
		return m.Bilingual
	default:
		return m.English
	}
}

func (m *Models) Close() error {
	var errs []error
	for _, h := range []Model{m.Bilingual, m.English} {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
