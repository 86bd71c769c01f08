package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Keys
// =============================================================================

func TestKeys(t *testing.T) {
	account := uuid.MustParse("11111111-2222-4333-8444-555555555555")
	object := uuid.MustParse("aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee")

	assert.Equal(t, "accounts/11111111-2222-4333-8444-555555555555/images/aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee.png", ImageKey(account, object, ".png"))
	assert.Equal(t, "accounts/11111111-2222-4333-8444-555555555555/thumbnails/aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee.jpg", ThumbnailKey(account, object))
	assert.Equal(t, "accounts/11111111-2222-4333-8444-555555555555/documents/aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee.pdf", DocumentKey(account, object))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "png", ExtensionFor("image/png"))
	assert.Equal(t, "jpg", ExtensionFor("image/jpeg; charset=binary"))
	assert.Equal(t, "pdf", ExtensionFor("application/pdf"))
	assert.Equal(t, "bin", ExtensionFor("text/plain"))
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "/etc/passwd", "../secret", "accounts/../../x"} {
		assert.ErrorIs(t, validateKey(key), ErrInvalidKey, key)
	}
	assert.NoError(t, validateKey("accounts/a/images/b.png"))
	assert.NoError(t, validateKey("accounts/a/images/b..png"))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "ftp"}, testLogger())
	assert.Error(t, err)
}

// =============================================================================
// Local
// =============================================================================

func TestLocalStorage_PutURLDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/files/"}, testLogger())
	require.NoError(t, err)

	key := "accounts/a/documents/b.pdf"
	require.NoError(t, s.Put(ctx, key, []byte("%PDF-1.3"), "application/pdf"))

	got, err := os.ReadFile(filepath.Join(s.BasePath(), "accounts", "a", "documents", "b.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(got))

	url, err := s.URL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/accounts/a/documents/b.pdf", url)

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(s.BasePath(), "accounts", "a", "documents", "b.pdf"))
	assert.True(t, os.IsNotExist(err))

	// Idempotent
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../escape.txt", []byte("x"), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "a/b", []byte("x"), ""), context.Canceled)
}

// =============================================================================
// R2
// =============================================================================

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	deny    bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestR2(t *testing.T, publicURL string) (*R2Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	s, err := NewR2Storage(R2Config{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "lab-files",
		Endpoint:        server.URL,
		PublicURL:       publicURL,
	}, testLogger())
	require.NoError(t, err)
	return s, fake
}

func TestR2Storage_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestR2(t, "")

	key := "accounts/a/images/b.png"
	require.NoError(t, s.Put(ctx, key, []byte("png-bytes"), "image/png"))
	assert.Equal(t, "png-bytes", fake.objects["/lab-files/"+key])
	assert.Equal(t, "image/png", fake.types["/lab-files/"+key])

	require.NoError(t, s.Delete(ctx, key))
	assert.NotContains(t, fake.objects, "/lab-files/"+key)
}

func TestR2Storage_AccessDenied(t *testing.T) {
	s, fake := newTestR2(t, "")
	fake.deny = true

	err := s.Put(context.Background(), "accounts/a/images/b.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestR2Storage_URL(t *testing.T) {
	ctx := context.Background()

	public, _ := newTestR2(t, "https://files.example.com/")
	url, err := public.URL(ctx, "accounts/a/images/b.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/accounts/a/images/b.png", url)

	private, _ := newTestR2(t, "")
	url, err = private.URL(ctx, "accounts/a/images/b.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "/lab-files/accounts/a/images/b.png")
	assert.True(t, strings.Contains(url, "X-Amz-Signature="))
}

func TestNewR2Storage_RequiresBucket(t *testing.T) {
	_, err := NewR2Storage(R2Config{AccountID: "acct"}, testLogger())
	assert.Error(t, err)
}
