// Package downloader fetches book packages (bookizip or EPUB) from a
// package server or an arbitrary URL into the local work directory.
package downloader

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

const (
	// DefaultTimeout is the HTTP client timeout for one download.
	DefaultTimeout = 300 * time.Second
	// MaxRetries is the number of attempts for retryable errors.
	MaxRetries = 3
	// BaseRetryDelay grows linearly with the attempt number.
	BaseRetryDelay = 2 * time.Second
)

// PackageFormat tags what kind of archive was fetched.
type PackageFormat string

const (
	FormatBookizip PackageFormat = "bookizip"
	FormatEpub     PackageFormat = "epub"
)

// FetchInfo describes a fetched package on disk.
type FetchInfo struct {
	Ref    string
	URL    string
	Path   string
	Format PackageFormat
}

// Fetcher downloads book packages with bounded retries.
type Fetcher struct {
	httpClient *http.Client
	workDir    string
}

// NewFetcher creates a Fetcher writing into workDir.
func NewFetcher(workDir string) *Fetcher {
	return NewFetcherWithTimeout(workDir, DefaultTimeout)
}

// NewFetcherWithTimeout creates a Fetcher with a custom HTTP timeout.
func NewFetcherWithTimeout(workDir string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return types.NewAppError(types.ErrNetwork, "too many redirects", nil)
				}
				return nil
			},
		},
		workDir: workDir,
	}
}

// WorkDir returns the fetcher's work directory.
func (f *Fetcher) WorkDir() string { return f.workDir }

// SetWorkDir changes the fetcher's work directory.
func (f *Fetcher) SetWorkDir(dir string) { f.workDir = dir }

// BuildPackageURL constructs the bookizip export URL for a book name
// on the given package server. A server without a scheme defaults to
// http, matching how servers are named in configuration.
func BuildPackageURL(server, book string) string {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return fmt.Sprintf("%s/export/%s.zip", strings.TrimRight(server, "/"), url.PathEscape(book))
}

// Fetch resolves a book reference to a local archive. A reference that
// is an existing local file is used in place; an http(s) URL is
// downloaded; anything else is treated as a book name on the package
// server.
func (f *Fetcher) Fetch(server, ref string) (*FetchInfo, error) {
	if ref == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "book reference cannot be empty", nil)
	}

	if _, err := os.Stat(ref); err == nil {
		format, err := detectFormat(ref)
		if err != nil {
			return nil, err
		}
		logger.Info("using local book package", logger.String("path", ref))
		return &FetchInfo{Ref: ref, Path: ref, Format: format}, nil
	}

	fetchURL := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		fetchURL = BuildPackageURL(server, ref)
	}

	if err := os.MkdirAll(f.workDir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to create work directory", err)
	}

	destPath := filepath.Join(f.workDir, filenameForURL(fetchURL))
	logger.Info("fetching book package",
		logger.String("ref", ref), logger.String("url", fetchURL))

	if err := f.downloadWithRetry(fetchURL, destPath); err != nil {
		return nil, err
	}

	format, err := detectFormat(destPath)
	if err != nil {
		return nil, err
	}
	logger.Info("book package fetched",
		logger.String("path", destPath), logger.String("format", string(format)))
	return &FetchInfo{Ref: ref, URL: fetchURL, Path: destPath, Format: format}, nil
}

func (f *Fetcher) downloadWithRetry(fetchURL, destPath string) error {
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		logger.Debug("download attempt", logger.Int("attempt", attempt), logger.String("url", fetchURL))
		err := f.downloadFile(fetchURL, destPath)
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("download attempt failed", logger.Int("attempt", attempt), logger.Err(err))

		if !isRetryableError(err) {
			return err
		}
		if attempt < MaxRetries {
			time.Sleep(BaseRetryDelay * time.Duration(attempt))
		}
	}

	return types.NewAppErrorWithDetails(
		types.ErrNetwork,
		"download failed after multiple retries",
		fmt.Sprintf("attempted %d times", MaxRetries),
		lastErr,
	)
}

func (f *Fetcher) downloadFile(fetchURL, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, fetchURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("User-Agent", "book-binder/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrNetwork, "network request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleHTTPError(resp.StatusCode, fetchURL)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create destination file", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(destPath)
		return types.NewAppError(types.ErrNetwork, "failed to save downloaded content", err)
	}
	return nil
}

// zipMagic is the local-file-header signature every zip (and thus
// every bookizip and EPUB) starts with. A server error page delivered
// with status 200 fails this check.
var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

func detectFormat(archivePath string) (PackageFormat, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", types.NewAppError(types.ErrFileNotFound, "cannot open book package", err)
	}
	defer file.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(file, header); err != nil {
		return "", types.NewAppError(types.ErrInvalidInput, "book package too short", err)
	}
	if !bytes.Equal(header, zipMagic) {
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"book package is not a zip archive", archivePath, nil)
	}

	if strings.HasSuffix(strings.ToLower(archivePath), ".epub") {
		return FormatEpub, nil
	}
	return FormatBookizip, nil
}

func filenameForURL(fetchURL string) string {
	if u, err := url.Parse(fetchURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return "book.zip"
}

func handleHTTPError(statusCode int, fetchURL string) error {
	switch statusCode {
	case http.StatusNotFound:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"book package not found",
			fmt.Sprintf("URL: %s returned 404", fetchURL),
			nil,
		)
	case http.StatusForbidden:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"access forbidden",
			fmt.Sprintf("URL: %s returned 403", fetchURL),
			nil,
		)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrNetwork,
			"server error",
			fmt.Sprintf("URL: %s returned %d", fetchURL, statusCode),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"download failed",
			fmt.Sprintf("URL: %s returned status %d", fetchURL, statusCode),
			nil,
		)
	}
}

// isRetryableError reports whether a retry can help. Network and
// server errors are retryable; client-side errors are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*types.AppError); ok {
		return appErr.Code == types.ErrNetwork
	}
	return true
}
