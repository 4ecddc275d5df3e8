package tesseract

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"ffmemes-ocr/api/internal/ocr"
)

// tessdataDir finds an installed tessdata directory holding every file of v,
// or skips the test.
func tessdataDir(t *testing.T, v ocr.Variant) string {
	t.Helper()
	candidates := []string{
		os.Getenv("TESSDATA_PREFIX"),
		"/usr/share/tesseract-ocr/5/tessdata",
		"/usr/share/tesseract-ocr/4.00/tessdata",
		"/usr/share/tessdata",
		"/usr/local/share/tessdata",
	}
	for _, dir := range candidates {
		if dir != "" && len(MissingFiles(dir, v)) == 0 {
			return dir
		}
	}
	t.Skipf("tessdata with %v not installed", RequiredFiles(v))
	return ""
}

// renderText draws black text on white with the Go font (it has Cyrillic).
func renderText(t *testing.T, lines ...string) *image.Gray {
	t.Helper()
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse font: %v", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 48, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		t.Fatalf("new face: %v", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, 900, 120+90*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(40, 100+90*i)
		d.DrawString(line)
	}
	return ocr.Grayscale(img)
}

func joined(res ocr.Result) string {
	return strings.ToUpper(strings.Join(res.Texts(), " "))
}

func TestLoadUnprovisionedDir(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []ocr.Variant{ocr.VariantBilingual, ocr.VariantEnglish} {
		_, err := Load(dir, v)
		if !errors.Is(err, ErrModelNotProvisioned) {
			t.Fatalf("%s: want ErrModelNotProvisioned, got %v", v, err)
		}
	}

	// частично заполненный том тоже не годится
	if err := os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir, ocr.VariantBilingual)
	if !errors.Is(err, ErrModelNotProvisioned) {
		t.Fatalf("want ErrModelNotProvisioned, got %v", err)
	}
	if !strings.Contains(err.Error(), "rus.traineddata") || !strings.Contains(err.Error(), DetectorFile) {
		t.Fatalf("error should name missing files: %v", err)
	}
}

func TestLoadModelsFailsFast(t *testing.T) {
	_, err := LoadModels(t.TempDir(), ocr.DeviceCPU, 1, zap.NewNop().Sugar())
	if !errors.Is(err, ErrModelNotProvisioned) {
		t.Fatalf("want ErrModelNotProvisioned, got %v", err)
	}
}

func TestRequiredFiles(t *testing.T) {
	got := RequiredFiles(ocr.VariantBilingual)
	want := []string{"osd.traineddata", "eng.traineddata", "rus.traineddata"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("RequiredFiles = %v, want %v", got, want)
	}
	if got := RecognizerFiles(ocr.VariantEnglish); len(got) != 1 || got[0] != "eng.traineddata" {
		t.Fatalf("RecognizerFiles(en) = %v", got)
	}
}

func TestToResult(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 20, 110, 60), Word: "Hello\nworld \n"},
		{Box: image.Rect(0, 0, 5, 5), Word: "  \n"},
		{Box: image.Rect(10, 80, 90, 120), Word: "second"},
	}
	res := toResult(boxes)
	if len(res) != 2 {
		t.Fatalf("want 2 detections, got %d", len(res))
	}
	if res[0].Text != "Hello world" {
		t.Fatalf("text = %q", res[0].Text)
	}
	if res[0].Box != (ocr.Quad{{10, 20}, {110, 20}, {110, 60}, {10, 60}}) {
		t.Fatalf("box = %v", res[0].Box)
	}
	if res[1].Text != "second" {
		t.Fatalf("order lost: %+v", res)
	}
}

func TestReadTextEnglish(t *testing.T) {
	dir := tessdataDir(t, ocr.VariantEnglish)
	h, err := Load(dir, ocr.VariantEnglish)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer h.Close()

	res, err := h.ReadText(context.Background(), renderText(t, "HELLO WORLD", "OCR SERVICE"), ocr.ReadOptions{Paragraph: true})
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if len(res) == 0 {
		t.Fatalf("no detections")
	}
	if got := joined(res); !strings.Contains(got, "HELLO") {
		t.Fatalf("unexpected OCR output: %q", got)
	}
	for _, d := range res {
		if d.Box[0][0] > d.Box[1][0] || d.Box[0][1] > d.Box[3][1] {
			t.Fatalf("malformed quad %v", d.Box)
		}
	}
}

func TestReadTextRussian(t *testing.T) {
	dir := tessdataDir(t, ocr.VariantBilingual)
	h, err := Load(dir, ocr.VariantBilingual, WithWorkers(2))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer h.Close()

	res, err := h.ReadText(context.Background(), renderText(t, "ПРИВЕТ МИР"), ocr.ReadOptions{Paragraph: true})
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if got := joined(res); !strings.Contains(got, "ПРИВЕТ") {
		t.Fatalf("unexpected OCR output: %q", got)
	}
}

func TestReadTextHonoursContext(t *testing.T) {
	dir := tessdataDir(t, ocr.VariantEnglish)
	h, err := Load(dir, ocr.VariantEnglish)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer h.Close()

	// единственный клиент занят, ожидание должно оборваться по ctx
	c := <-h.pool
	defer func() { h.pool <- c }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.ReadText(ctx, renderText(t, "X"), ocr.ReadOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
