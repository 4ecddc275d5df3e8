// Package provision fills the shared model volume with Tesseract weights.
//
// It is the only component allowed to reach the upstream tessdata source;
// the inference service loads weights strictly from disk.
package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/ocr"
	"ffmemes-ocr/api/internal/ocr/tesseract"
)

const DefaultSource = "https://github.com/tesseract-ocr/tessdata_fast/raw/main"

// Options force a re-download of components that are already present.
// Absent files are fetched regardless.
type Options struct {
	Detector   bool
	Recognizer bool
}

type Provisioner struct {
	Source string
	HTTP   *http.Client
	Log    *zap.SugaredLogger

	// Verify loads the freshly written weights once. Defaults to a real
	// Tesseract handle that is closed right away.
	Verify func(dir string, v ocr.Variant) error
}

func New(source string, log *zap.SugaredLogger) *Provisioner {
	if source == "" {
		source = DefaultSource
	}
	return &Provisioner{
		Source: strings.TrimRight(source, "/"),
		HTTP:   &http.Client{Timeout: 10 * time.Minute},
		Log:    log,
		Verify: loadAndClose,
	}
}

func loadAndClose(dir string, v ocr.Variant) error {
	h, err := tesseract.Load(dir, v)
	if err != nil {
		return err
	}
	return h.Close()
}

// Provision makes sure the weights for selector ("ru" → English+Russian,
// anything else → English) are in dir, then loads them once. It returns the
// names of files it downloaded. Failures are not retried.
func (p *Provisioner) Provision(ctx context.Context, selector, dir string, opt Options) ([]string, error) {
	v := ocr.VariantForSelector(selector)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("make dir: %w", err)
	}

	want := map[string]bool{tesseract.DetectorFile: opt.Detector}
	for _, name := range tesseract.RecognizerFiles(v) {
		want[name] = opt.Recognizer
	}

	var fetched []string
	for _, name := range tesseract.RequiredFiles(v) {
		force := want[name]
		if !force && present(filepath.Join(dir, name)) {
			p.Log.Debugw("weights present", "file", name, "model", v.String())
			continue
		}
		start := time.Now()
		n, err := p.download(ctx, name, dir)
		if err != nil {
			return fetched, err
		}
		p.Log.Infow("weights downloaded", "file", name, "bytes", n, "model", v.String(), "elapsed", time.Since(start).Round(time.Millisecond))
		fetched = append(fetched, name)
	}

	if p.Verify != nil {
		if err := p.Verify(dir, v); err != nil {
			return fetched, fmt.Errorf("load %s after provisioning: %w", v, err)
		}
	}
	return fetched, nil
}

func present(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Size() > 0
}

// download writes Source/name into dir atomically: temp file in the same
// directory, then rename.
func (p *Provisioner) download(ctx context.Context, name, dir string) (int64, error) {
	url := p.Source + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("fetch %s: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if n == 0 {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("fetch %s: empty body", name)
	}
	if err := tmp.Chmod(0o644); err != nil {
		// не критично
		p.Log.Debugw("chmod temp", "file", tmpPath, "err", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return n, nil
}
