package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putFails int
	putCalls int
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putFails > 0 {
		m.putFails--
		return nil, errors.New("transient s3 failure")
	}
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func testManager(t *testing.T, mock *mockS3Client) *Manager {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subledger.db")
	if err := os.WriteFile(dbPath, []byte("fake database bytes"), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{
		DBPath:     dbPath,
		Bucket:     "backups",
		Prefix:     "subledger",
		Interval:   time.Hour,
		Passphrase: "test-passphrase",
	}, nil, slog.Default())
	m.client = mock
	m.retryBase = time.Millisecond
	return m
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	mock := newMockS3()
	m := testManager(t, mock)

	key, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.HasPrefix(key, "subledger/backup-") || !strings.HasSuffix(key, ".db.enc") {
		t.Errorf("unexpected key %q", key)
	}

	data, ok := mock.objects[key]
	if !ok {
		t.Fatal("object not uploaded")
	}
	if strings.Contains(string(data), "fake database bytes") {
		t.Error("uploaded object is not encrypted")
	}
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	mock := newMockS3()
	mock.putFails = 2
	m := testManager(t, mock)

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.enc")
	if err := os.WriteFile(path, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := m.upload(context.Background(), "subledger/k", path); err != nil {
		t.Fatalf("upload should succeed after retries: %v", err)
	}
	if mock.putCalls != 3 {
		t.Errorf("putCalls = %d, want 3", mock.putCalls)
	}
}

func TestUploadGivesUpAfterMaxRetries(t *testing.T) {
	mock := newMockS3()
	mock.putFails = 10
	m := testManager(t, mock)

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.enc")
	if err := os.WriteFile(path, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := m.upload(context.Background(), "subledger/k", path); err == nil {
		t.Error("upload should fail once retries are exhausted")
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := testManager(t, newMockS3())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestStatusTracksFailure(t *testing.T) {
	mock := newMockS3()
	mock.putFails = 10
	m := testManager(t, mock)

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if m.Status().LastError == "" {
		t.Error("status should record the error")
	}
	if m.Status().InProgress {
		t.Error("InProgress should be cleared")
	}
}
