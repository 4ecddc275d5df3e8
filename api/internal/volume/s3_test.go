package volume

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *memStore) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *memStore) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := aws.ToString(in.Bucket) + "/"
	var out s3.ListObjectsV2Output
	for k := range m.objects {
		if !strings.HasPrefix(k, bucket) {
			continue
		}
		key := strings.TrimPrefix(k, bucket)
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return &out, nil
}

func TestPushPull(t *testing.T) {
	store := newMemStore()
	log := zap.NewNop().Sugar()
	src := t.TempDir()
	for name, body := range map[string]string{
		"eng.traineddata": "eng",
		"rus.traineddata": "rus",
		"osd.traineddata": "osd",
		"notes.txt":       "skip me",
	} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := NewS3Mirror(store, "ocr-volumes", "/models/", log)
	pushed, err := m.Push(context.Background(), src)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(pushed) != 3 {
		t.Fatalf("pushed %v", pushed)
	}
	if _, ok := store.objects["ocr-volumes/models/rus.traineddata"]; !ok {
		t.Fatalf("unexpected keys: %v", store.objects)
	}

	// чужой префикс не должен попасть в том
	store.objects["ocr-volumes/models-old/deu.traineddata"] = []byte("deu")

	dst := filepath.Join(t.TempDir(), "volume")
	pulled, err := m.Pull(context.Background(), dst)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	sort.Strings(pulled)
	if strings.Join(pulled, ",") != "eng.traineddata,osd.traineddata,rus.traineddata" {
		t.Fatalf("pulled %v", pulled)
	}
	b, _ := os.ReadFile(filepath.Join(dst, "rus.traineddata"))
	if string(b) != "rus" {
		t.Fatalf("rus.traineddata = %q", b)
	}
}

func TestPullMissingObject(t *testing.T) {
	store := &brokenGet{memStore: newMemStore()}
	store.objects["b/eng.traineddata"] = []byte("x")
	m := NewS3Mirror(store, "b", "", zap.NewNop().Sugar())

	dir := t.TempDir()
	if _, err := m.Pull(context.Background(), dir); err == nil {
		t.Fatalf("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial files left: %v", entries)
	}
}

type brokenGet struct{ *memStore }

func (b *brokenGet) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("access denied")
}
