// Package fonts maintains a cached inventory of the fonts available
// to the renderer, plus a generated sample sheet showing each face.
package fonts

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// DefaultTTL is how long a built inventory stays fresh. Font
// installations are rare; an hour keeps the list effectively live
// without shelling out per request.
const DefaultTTL = time.Hour

// Font is one installed font face.
type Font struct {
	Path   string `json:"path"`
	Family string `json:"family"`
	Style  string `json:"style"`
}

// inventory is an immutable snapshot; the cache swaps whole snapshots
// rather than mutating one in place.
type inventory struct {
	Fonts   []Font    `json:"fonts"`
	BuiltAt time.Time `json:"builtAt"`
}

// Cache is a concurrency-safe font inventory backed by fc-list.
type Cache struct {
	cachePath string
	ttl       time.Duration
	listFonts func(ctx context.Context) ([]Font, error)

	mu   sync.RWMutex
	snap *inventory
}

// NewCache creates a Cache persisting to cachePath (empty disables
// persistence).
func NewCache(cachePath string) *Cache {
	return &Cache{
		cachePath: cachePath,
		ttl:       DefaultTTL,
		listFonts: fcList,
	}
}

// Fonts returns the current inventory, rebuilding it first when stale
// or absent. Concurrent readers share one snapshot.
func (c *Cache) Fonts(ctx context.Context) ([]Font, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if snap != nil && time.Since(snap.BuiltAt) < c.ttl {
		return snap.Fonts, nil
	}
	return c.rebuild(ctx)
}

func (c *Cache) rebuild(ctx context.Context) ([]Font, error) {
	fonts, err := c.listFonts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(fonts, func(i, j int) bool {
		if fonts[i].Family != fonts[j].Family {
			return fonts[i].Family < fonts[j].Family
		}
		return fonts[i].Style < fonts[j].Style
	})

	fresh := &inventory{Fonts: fonts, BuiltAt: time.Now()}
	c.mu.Lock()
	c.snap = fresh
	c.mu.Unlock()

	if c.cachePath != "" {
		if err := c.persist(fresh); err != nil {
			logger.Warn("font inventory not persisted", logger.Err(err))
		}
	}
	logger.Info("font inventory rebuilt", logger.Int("fonts", len(fonts)))
	return fonts, nil
}

// Load restores a persisted inventory. A missing or stale file is not
// an error; the next Fonts call rebuilds.
func (c *Cache) Load() error {
	if c.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to read font cache", err)
	}
	var snap inventory
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("font cache unparsable, ignoring", logger.Err(err))
		return nil
	}
	c.mu.Lock()
	c.snap = &snap
	c.mu.Unlock()
	return nil
}

func (c *Cache) persist(snap *inventory) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.cachePath, data, 0644)
}

// fcList shells out to fc-list for the installed TrueType faces.
func fcList(ctx context.Context) ([]Font, error) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, "fc-list", ":fontformat=TrueType", "file", "family", "style")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return nil, types.NewAppError(types.ErrTool, "font listing timed out", cctx.Err())
		}
		return nil, types.NewAppErrorWithDetails(types.ErrTool, "font listing failed", stderr.String(), err)
	}
	return ParseFcList(stdout.String()), nil
}

// ParseFcList parses fc-list output lines of the form
// "/path/font.ttf: Family,Alt Family:style=Regular,Other". Lines that
// do not fit are skipped.
func ParseFcList(output string) []Font {
	var fonts []Font
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pathEnd := strings.Index(line, ": ")
		if pathEnd < 1 {
			continue
		}
		font := Font{Path: line[:pathEnd]}
		rest := line[pathEnd+2:]

		if i := strings.Index(rest, ":style="); i >= 0 {
			font.Style = firstField(rest[i+len(":style="):])
			rest = rest[:i]
		}
		font.Family = firstField(rest)
		if font.Family == "" {
			continue
		}
		fonts = append(fonts, font)
	}
	return fonts
}

// firstField takes the first comma-separated value, trimmed.
func firstField(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
