package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ddgraph/internal/logging"
)

const defaultCacheSize = 256

type cacheEntry struct {
	payloadMod    time.Time
	structuredMod time.Time
	company       *Company
}

// Loader reads company records from a data directory. Results are cached and
// invalidated when either source file's modification time changes.
type Loader struct {
	payloadsDir   string
	structuredDir string
	cache         *lru.Cache[string, cacheEntry]
	logger        *logging.Logger
}

func NewLoader(dataDir string, cacheSize int) (*Loader, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("company loader: data dir is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Loader{
		payloadsDir:   filepath.Join(dataDir, "payloads"),
		structuredDir: filepath.Join(dataDir, "structured"),
		cache:         cache,
		logger:        logging.GetLogger("company"),
	}, nil
}

// ValidID rejects ids that are empty or would escape the data directory.
func ValidID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("company id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid company id %q", id)
	}
	return nil
}

// Load returns the normalized record, or nil with no error when neither
// source exists. A corrupt source is logged and skipped.
func (l *Loader) Load(ctx context.Context, companyID string) (*Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidID(companyID); err != nil {
		return nil, err
	}
	payloadPath := filepath.Join(l.payloadsDir, companyID+".json")
	structuredPath := filepath.Join(l.structuredDir, companyID+".json")
	pMod := modTime(payloadPath)
	sMod := modTime(structuredPath)

	if e, ok := l.cache.Get(companyID); ok && e.payloadMod.Equal(pMod) && e.structuredMod.Equal(sMod) {
		return e.company, nil
	}

	payload, rawPayload := l.readJSON(companyID, "payload", payloadPath)
	structured, _ := l.readJSON(companyID, "structured", structuredPath)

	var c *Company
	if len(payload) > 0 || len(structured) > 0 {
		if len(payload) == 0 {
			payload, rawPayload = nil, nil
		}
		if len(structured) == 0 {
			structured = nil
		}
		c = normalize(companyID, structured, payload, rawPayload)
	}
	l.cache.Add(companyID, cacheEntry{payloadMod: pMod, structuredMod: sMod, company: c})
	return c, nil
}

func (l *Loader) readJSON(companyID, kind, path string) (map[string]any, json.RawMessage) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Error reading %s data for %s: %v", kind, companyID, err)
		}
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		l.logger.Warn("Error loading %s data for %s: %v", kind, companyID, err)
		return nil, nil
	}
	return m, json.RawMessage(raw)
}

// CompanyIDs lists the sorted union of ids present in either layout.
func (l *Loader) CompanyIDs() ([]string, error) {
	seen := map[string]struct{}{}
	for _, dir := range []string{l.payloadsDir, l.structuredDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			seen[strings.TrimSuffix(name, ".json")] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
