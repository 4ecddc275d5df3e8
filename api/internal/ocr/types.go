package ocr

import (
	"encoding/json"
	"fmt"
	"image"
)

// Point is an (x, y) pixel coordinate.
type Point [2]int

// Quad is a bounding quadrilateral: top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Point

func QuadFromRect(r image.Rectangle) Quad {
	return Quad{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y},
		{r.Min.X, r.Max.Y},
	}
}

// Detection is one recognised span. On the wire it is a two-element array:
//
//	[[[x1,y1],[x2,y2],[x3,y3],[x4,y4]], "text"]
type Detection struct {
	Box  Quad
	Text string
}

func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{d.Box, d.Text})
}

func (d *Detection) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("detection: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &d.Box); err != nil {
		return fmt.Errorf("detection box: %w", err)
	}
	if err := json.Unmarshal(raw[1], &d.Text); err != nil {
		return fmt.Errorf("detection text: %w", err)
	}
	return nil
}

// Result is the ordered output of a recognition call.
type Result []Detection

// MarshalJSON keeps an empty result as [] rather than null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Detection(r))
}

// Texts returns just the recognised strings, in order.
func (r Result) Texts() []string {
	out := make([]string, 0, len(r))
	for _, d := range r {
		out = append(out, d.Text)
	}
	return out
}

// ErrorResponse is the body returned when a request cannot be served.
type ErrorResponse struct {
	Error string `json:"error"`
}

const MsgCannotIdentifyImage = "Cannot identify image file"
