package downloader

import (
	"archive/zip"
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"book-binder/internal/types"
)

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("info.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(`{"version":"1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBuildPackageURL(t *testing.T) {
	tests := []struct {
		server, book, want string
	}{
		{"www.booki.cc", "my-book", "http://www.booki.cc/export/my-book.zip"},
		{"https://books.example.org/", "my-book", "https://books.example.org/export/my-book.zip"},
		{"books.example.org", "a book", "http://books.example.org/export/a%20book.zip"},
	}
	for _, tt := range tests {
		if got := BuildPackageURL(tt.server, tt.book); got != tt.want {
			t.Errorf("BuildPackageURL(%q, %q) = %q, want %q", tt.server, tt.book, got, tt.want)
		}
	}
}

func TestFetchFromServer(t *testing.T) {
	payload := zipBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export/my-book.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	info, err := f.Fetch(srv.URL, "my-book")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.Format != FormatBookizip {
		t.Errorf("format = %q", info.Format)
	}
	data, err := os.ReadFile(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("downloaded content differs from served content")
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.Fetch(srv.URL, "missing-book")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrDownload {
		t.Fatalf("want ErrDownload, got %v", err)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	payload := zipBytes(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcherWithTimeout(t.TempDir(), 5*time.Second)
	info, err := f.Fetch("ignored", srv.URL+"/export/b.zip")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
	if info.Format != FormatBookizip {
		t.Errorf("format = %q", info.Format)
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(path, zipBytes(t), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(t.TempDir())
	info, err := f.Fetch("www.booki.cc", path)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.Path != path || info.Format != FormatEpub {
		t.Errorf("info = %+v", info)
	}
}

func TestFetchRejectsNonZipPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>soft error page</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.Fetch("ignored", srv.URL+"/export/b.zip")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrInvalidInput {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestFetchEmptyRef(t *testing.T) {
	f := NewFetcher(t.TempDir())
	if _, err := f.Fetch("server", ""); err == nil {
		t.Fatal("empty ref should be rejected")
	}
}
