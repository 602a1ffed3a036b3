package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

// fakeGCS answers the upload and download calls the client makes.
type fakeGCS struct {
	mu      sync.Mutex
	uploads []string
	objects map[string][]byte
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/b/test-bucket/o"):
		body, _ := io.ReadAll(r.Body)
		f.uploads = append(f.uploads, r.URL.Query().Get("name")+"|"+string(body))
		fmt.Fprintf(w, `{"name":%q,"bucket":"test-bucket"}`, r.URL.Query().Get("name"))
	case r.Method == http.MethodGet:
		for name, data := range f.objects {
			if strings.HasSuffix(r.URL.Path, name) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Goog-Generation", "1")
				w.Header().Set("X-Goog-Metageneration", "1")
				_, _ = w.Write(data)
				return
			}
		}
		http.NotFound(w, r)
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func newTestStore(t *testing.T, fake *fakeGCS) *CrawlStore {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	store, err := New(client, Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveCrawlUploadsJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeGCS{objects: map[string][]byte{}}
	store := newTestStore(t, fake)

	rec := crawler.CrawlRecord{ID: "abc", Status: crawler.CrawlStatusSucceeded, Fonts: []string{"arial"}}
	require.NoError(t, store.SaveCrawl(context.Background(), rec))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.uploads, 1)
	require.True(t, strings.HasPrefix(fake.uploads[0], "crawls/abc.json|"))
	require.Contains(t, fake.uploads[0], `"fonts":["arial"]`)
}

func TestGetCrawlDecodesObject(t *testing.T) {
	t.Parallel()

	rec := crawler.CrawlRecord{
		ID:         "abc",
		Status:     crawler.CrawlStatusFailed,
		Reason:     "boom",
		Fonts:      []string{},
		StartedAt:  time.Unix(1700000000, 0).UTC(),
		FinishedAt: time.Unix(1700000001, 0).UTC(),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	fake := &fakeGCS{objects: map[string][]byte{"crawls/abc.json": data}}
	store := newTestStore(t, fake)

	got, err := store.GetCrawl(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	_, err = store.GetCrawl(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrCrawlNotFound)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket name is required")

	store, err := New(client, Config{Bucket: "b", Prefix: "/archive/"})
	require.NoError(t, err)
	require.Equal(t, "archive/x.json", store.objectName("x"))
	require.Error(t, store.SaveCrawl(context.Background(), crawler.CrawlRecord{}))
}
