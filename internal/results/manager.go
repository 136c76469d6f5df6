// Package results manages finished binding artifacts stored in the
// user's results directory, one subdirectory per book.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"book-binder/internal/types"
)

// ArtifactInfo describes one produced output file for a book.
type ArtifactInfo struct {
	Format    types.OutputMode `json:"format"`
	Path      string           `json:"path"`
	MD5       string           `json:"md5"`
	Pages     int              `json:"pages,omitempty"` // zero for ODT/EPUB
	CreatedAt time.Time        `json:"created_at"`
}

// BookInfo is the stored metadata for a bound book.
type BookInfo struct {
	BookID    string                             `json:"book_id"`
	Title     string                             `json:"title"`
	Input     string                             `json:"input"` // the original book reference
	BoundAt   time.Time                          `json:"bound_at"`
	Artifacts map[types.OutputMode]*ArtifactInfo `json:"artifacts"`
}

// Manager stores binding results under a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a Manager rooted at baseDir, defaulting to
// ~/book-binder-results.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, "book-binder-results")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the base directory for results.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// BookDir returns the directory for a specific book.
func (m *Manager) BookDir(bookID string) string {
	return filepath.Join(m.baseDir, sanitizeBookID(bookID))
}

// RecordArtifact copies artifactPath into the book's directory and
// registers it in the book's metadata, replacing an earlier artifact
// of the same format. It returns the stored path.
func (m *Manager) RecordArtifact(bookID, title, input string, format types.OutputMode, artifactPath string, pages int) (string, error) {
	bookDir := m.BookDir(bookID)
	if err := os.MkdirAll(bookDir, 0755); err != nil {
		return "", err
	}

	storedPath := filepath.Join(bookDir, artifactFileName(format))
	if err := copyFile(artifactPath, storedPath); err != nil {
		return "", err
	}
	hash, err := FileMD5(storedPath)
	if err != nil {
		return "", err
	}

	info, err := m.LoadBookInfo(bookID)
	if err != nil {
		info = &BookInfo{
			BookID: bookID,
			Title:  title,
			Input:  input,
		}
	}
	if title != "" {
		info.Title = title
	}
	if input != "" {
		info.Input = input
	}
	if info.Artifacts == nil {
		info.Artifacts = make(map[types.OutputMode]*ArtifactInfo)
	}
	info.Artifacts[format] = &ArtifactInfo{
		Format:    format,
		Path:      storedPath,
		MD5:       hash,
		Pages:     pages,
		CreatedAt: time.Now(),
	}
	info.BoundAt = time.Now()

	if err := m.saveBookInfo(info); err != nil {
		return "", err
	}
	return storedPath, nil
}

// LoadBookInfo loads a book's metadata.
func (m *Manager) LoadBookInfo(bookID string) (*BookInfo, error) {
	metaPath := filepath.Join(m.BookDir(bookID), "metadata.json")

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var info BookInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListBooks returns all bound books, newest first.
func (m *Manager) ListBooks() ([]*BookInfo, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*BookInfo{}, nil
		}
		return nil, err
	}

	var books []*BookInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(m.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue // skip directories without metadata
		}

		var info BookInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		books = append(books, &info)
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].BoundAt.After(books[j].BoundAt)
	})
	return books, nil
}

// DeleteBook removes a book's directory and every stored artifact.
func (m *Manager) DeleteBook(bookID string) error {
	return os.RemoveAll(m.BookDir(bookID))
}

// BookExists reports whether a book has stored metadata.
func (m *Manager) BookExists(bookID string) bool {
	metaPath := filepath.Join(m.BookDir(bookID), "metadata.json")
	_, err := os.Stat(metaPath)
	return err == nil
}

// Artifact returns the stored artifact of the given format, if any.
func (m *Manager) Artifact(bookID string, format types.OutputMode) (*ArtifactInfo, bool) {
	info, err := m.LoadBookInfo(bookID)
	if err != nil {
		return nil, false
	}
	artifact, ok := info.Artifacts[format]
	return artifact, ok
}

// FindByMD5 finds a book holding an artifact with the given hash.
func (m *Manager) FindByMD5(md5Hash string) (*BookInfo, error) {
	books, err := m.ListBooks()
	if err != nil {
		return nil, err
	}
	for _, info := range books {
		for _, artifact := range info.Artifacts {
			if artifact.MD5 == md5Hash {
				return info, nil
			}
		}
	}
	return nil, nil // not found, but not an error
}

func (m *Manager) saveBookInfo(info *BookInfo) error {
	bookDir := m.BookDir(info.BookID)
	if err := os.MkdirAll(bookDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(bookDir, "metadata.json"), data, 0644)
}

// FileMD5 calculates the MD5 hash of a file.
func FileMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func artifactFileName(format types.OutputMode) string {
	switch format {
	case types.ModeODT:
		return "book.odt"
	case types.ModeEpub:
		return "book.epub"
	case types.ModeBooklet:
		return "booklet.pdf"
	case types.ModeNewspaper:
		return "newspaper.pdf"
	default:
		return "book.pdf"
	}
}

func sanitizeBookID(bookID string) string {
	safe := strings.ReplaceAll(bookID, "/", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	return safe
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
