package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestReqPrintsResult(t *testing.T) {
	color.NoColor = true

	var gotLang string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("lang")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`[[[[0,0],[10,0],[10,5],[0,5]],"hello"]]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	img := filepath.Join(dir, "sample.png")
	if err := os.WriteFile(img, []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "req.yaml")
	if err := os.WriteFile(cfg, []byte("api_url: "+srv.URL+"\nimage_path: "+img+"\nlang: ru\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OCR_API_URL", "")
	t.Setenv("OCR_IMAGE_PATH", "")
	t.Setenv("OCR_LANG", "")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--config", cfg, "--lang", "en"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if gotLang != "en" || string(gotBody) != "png bytes" {
		t.Fatalf("request lang=%q body=%q", gotLang, gotBody)
	}
	s := out.String()
	if !strings.Contains(s, `"hello"`) || !strings.Contains(s, "1 detections") || !strings.Contains(s, "elapsed:") {
		t.Fatalf("output:\n%s", s)
	}
}

func TestReqSendsExplicitEmptyLang(t *testing.T) {
	color.NoColor = true

	var rawQuery string
	var hasLang bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		hasLang = r.URL.Query().Has("lang")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	img := filepath.Join(dir, "sample.png")
	if err := os.WriteFile(img, []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OCR_API_URL", "")
	t.Setenv("OCR_IMAGE_PATH", "")
	t.Setenv("OCR_LANG", "")

	cmd := newRootCmd(io.Discard)
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "--url", srv.URL, "--image", img, "--lang", ""})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	// пустой lang доходит до сервиса и выбирает английскую модель
	if !hasLang || rawQuery != "lang=" {
		t.Fatalf("query = %q, want lang=", rawQuery)
	}
}

func TestReqRequiresURL(t *testing.T) {
	t.Setenv("OCR_API_URL", "")
	cmd := newRootCmd(io.Discard)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected missing url error")
	}
}
