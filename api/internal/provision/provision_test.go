package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/ocr"
	"ffmemes-ocr/api/internal/ocr/tesseract"
)

type upstream struct {
	mu   sync.Mutex
	hits []string
	srv  *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		u.mu.Lock()
		u.hits = append(u.hits, name)
		u.mu.Unlock()
		if !strings.HasSuffix(name, ".traineddata") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("weights:" + name))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) fetched() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := append([]string(nil), u.hits...)
	sort.Strings(out)
	return out
}

func newTestProvisioner(src string, verified *[]ocr.Variant) *Provisioner {
	p := New(src, zap.NewNop().Sugar())
	p.Verify = func(dir string, v ocr.Variant) error {
		*verified = append(*verified, v)
		if missing := tesseract.MissingFiles(dir, v); len(missing) > 0 {
			return errors.New("missing " + strings.Join(missing, ","))
		}
		return nil
	}
	return p
}

func TestProvisionRussianPopulatesBilingualModel(t *testing.T) {
	up := newUpstream(t)
	dir := filepath.Join(t.TempDir(), "models")
	var verified []ocr.Variant
	p := newTestProvisioner(up.srv.URL, &verified)

	got, err := p.Provision(context.Background(), "ru", dir, Options{})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("downloaded %v", got)
	}
	if len(tesseract.MissingFiles(dir, ocr.VariantBilingual)) != 0 {
		t.Fatalf("bilingual weights incomplete")
	}
	b, _ := os.ReadFile(filepath.Join(dir, "rus.traineddata"))
	if string(b) != "weights:rus.traineddata" {
		t.Fatalf("rus.traineddata = %q", b)
	}
	if len(verified) != 1 || verified[0] != ocr.VariantBilingual {
		t.Fatalf("verify calls = %v", verified)
	}

	// повторный запуск ничего не качает
	if got, err := p.Provision(context.Background(), "ru", dir, Options{}); err != nil || len(got) != 0 {
		t.Fatalf("second run: got %v, err %v", got, err)
	}
	// английской модели хватает уже скачанного
	if got, err := p.Provision(context.Background(), "en", dir, Options{}); err != nil || len(got) != 0 {
		t.Fatalf("en after ru: got %v, err %v", got, err)
	}
	if want := []string{"eng.traineddata", "osd.traineddata", "rus.traineddata"}; strings.Join(up.fetched(), ",") != strings.Join(want, ",") {
		t.Fatalf("upstream hits = %v", up.fetched())
	}

	tmps, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(tmps) != 0 {
		t.Fatalf("temp files left behind: %v", tmps)
	}
}

func TestProvisionForceFlags(t *testing.T) {
	up := newUpstream(t)
	dir := t.TempDir()
	var verified []ocr.Variant
	p := newTestProvisioner(up.srv.URL, &verified)

	if _, err := p.Provision(context.Background(), "en", dir, Options{}); err != nil {
		t.Fatal(err)
	}

	got, err := p.Provision(context.Background(), "fr", dir, Options{Recognizer: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "eng.traineddata" {
		t.Fatalf("forced recognizer: %v", got)
	}

	got, err = p.Provision(context.Background(), "en", dir, Options{Detector: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != tesseract.DetectorFile {
		t.Fatalf("forced detector: %v", got)
	}
}

func TestProvisionUpstreamFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var verified []ocr.Variant
	p := newTestProvisioner(srv.URL, &verified)
	dir := t.TempDir()

	_, err := p.Provision(context.Background(), "ru", dir, Options{})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("want status error, got %v", err)
	}
	if len(verified) != 0 {
		t.Fatalf("verify must not run after a failed download")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("failed download left files: %v", entries)
	}
}
