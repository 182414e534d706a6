package stagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"talkvault/internal/fileutil"
	"talkvault/internal/logging"
)

const (
	cacheDirName     = ".cache"
	manifestFileName = "manifest.json"
	lockFileName     = "manifest.lock"
	lockRetryDelay   = 50 * time.Millisecond

	// PipelineVersion is stamped on new manifests.
	PipelineVersion = "1"
)

var versionFilePattern = regexp.MustCompile(`^v(\d+)\.json$`)

// Entry is one versioned snapshot of a stage result.
type Entry struct {
	Version   int            `json:"version"`
	Stage     string         `json:"stage"`
	ModelName string         `json:"model_name"`
	CreatedAt time.Time      `json:"created_at"`
	InputHash string         `json:"input_hash"`
	FilePath  string         `json:"file_path"`
	IsCurrent bool           `json:"is_current"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Manifest is the per-video index of cached results.
type Manifest struct {
	VideoID         string             `json:"video_id"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	PipelineVersion string             `json:"pipeline_version"`
	Entries         map[string][]Entry `json:"entries"`
}

// Current returns the current entry of stage.
func (m *Manifest) Current(stage string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, entry := range m.Entries[stage] {
		if entry.IsCurrent {
			return entry, true
		}
	}
	return Entry{}, false
}

// Version returns the entry of stage with the exact version.
func (m *Manifest) Version(stage string, version int) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, entry := range m.Entries[stage] {
		if entry.Version == version {
			return entry, true
		}
	}
	return Entry{}, false
}

// Cache reads and writes stage results.
type Cache struct {
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		logger: logging.NewComponentLogger(logger, "stagecache"),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sync.Mutex),
	}
}

// Save writes result as the next version of stage and makes it current.
func (c *Cache) Save(ctx context.Context, archivePath, stage string, result any, modelName, inputHash string, metadata map[string]any) (Entry, error) {
	if err := validateStage(stage); err != nil {
		return Entry{}, err
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s result: %w", stage, err)
	}

	unlock, err := c.lock(ctx, archivePath)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	manifest := c.readManifest(archivePath)
	now := c.now()
	if manifest == nil {
		manifest = &Manifest{
			VideoID:         filepath.Base(filepath.Clean(archivePath)),
			CreatedAt:       now,
			PipelineVersion: PipelineVersion,
			Entries:         make(map[string][]Entry),
		}
	}
	if manifest.Entries == nil {
		manifest.Entries = make(map[string][]Entry)
	}

	version := max(maxVersion(manifest.Entries[stage]), c.maxVersionOnDisk(archivePath, stage)) + 1
	relPath := filepath.ToSlash(filepath.Join(stage, fmt.Sprintf("v%d.json", version)))
	if err := fileutil.WriteFileAtomic(filepath.Join(cacheDir(archivePath), filepath.FromSlash(relPath)), payload, 0o644); err != nil {
		return Entry{}, fmt.Errorf("write %s v%d: %w", stage, version, err)
	}

	entry := Entry{
		Version:   version,
		Stage:     stage,
		ModelName: modelName,
		CreatedAt: now,
		InputHash: inputHash,
		FilePath:  relPath,
		IsCurrent: true,
		Metadata:  metadata,
	}
	entries := manifest.Entries[stage]
	for i := range entries {
		entries[i].IsCurrent = false
	}
	manifest.Entries[stage] = append(entries, entry)
	manifest.UpdatedAt = now

	if err := c.writeManifest(archivePath, manifest); err != nil {
		return Entry{}, err
	}
	c.logger.Info("stage result cached",
		logging.String(logging.FieldEventType, "cache_save"),
		logging.String(logging.FieldStage, stage),
		logging.Int("version", version),
		logging.String("model", modelName),
		logging.String(logging.FieldVideoID, manifest.VideoID),
	)
	return entry, nil
}

// Load returns the raw result of stage at version; version 0 selects the
// current entry. A missing manifest, stage, or version returns nil, nil, nil.
func (c *Cache) Load(archivePath, stage string, version int) (json.RawMessage, *Entry, error) {
	manifest := c.readManifest(archivePath)
	if manifest == nil {
		return nil, nil, nil
	}
	var (
		entry Entry
		ok    bool
	)
	if version <= 0 {
		entry, ok = manifest.Current(stage)
	} else {
		entry, ok = manifest.Version(stage, version)
	}
	if !ok {
		return nil, nil, nil
	}
	data, err := os.ReadFile(filepath.Join(cacheDir(archivePath), filepath.FromSlash(entry.FilePath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(c.logger, "cached result file missing", "cache_file_missing",
				logging.String(logging.FieldStage, stage),
				logging.Int("version", entry.Version),
				logging.String(logging.FieldImpact, "stage treated as not cached"),
			)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read %s v%d: %w", stage, entry.Version, err)
	}
	return json.RawMessage(data), &entry, nil
}

// LoadInto decodes the result of stage at version into dst. It returns a nil
// entry when nothing is cached.
func (c *Cache) LoadInto(archivePath, stage string, version int, dst any) (*Entry, error) {
	data, entry, err := c.Load(archivePath, stage, version)
	if err != nil || entry == nil {
		return nil, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("decode %s v%d: %w", stage, entry.Version, err)
	}
	return entry, nil
}

// SetCurrentVersion makes version the current entry of stage. It returns
// false, leaving the manifest untouched, when the version does not exist.
func (c *Cache) SetCurrentVersion(archivePath, stage string, version int) (bool, error) {
	unlock, err := c.lock(context.Background(), archivePath)
	if err != nil {
		return false, err
	}
	defer unlock()

	manifest := c.readManifest(archivePath)
	if manifest == nil {
		return false, nil
	}
	if _, ok := manifest.Version(stage, version); !ok {
		return false, nil
	}
	entries := manifest.Entries[stage]
	for i := range entries {
		entries[i].IsCurrent = entries[i].Version == version
	}
	manifest.UpdatedAt = c.now()
	if err := c.writeManifest(archivePath, manifest); err != nil {
		return false, err
	}
	c.logger.Info("stage cache version selected",
		logging.String(logging.FieldEventType, "cache_set_current"),
		logging.String(logging.FieldStage, stage),
		logging.Int("version", version),
	)
	return true, nil
}

// Invalidated reports whether the cached result of stage must be recomputed
// for inputHash: true when nothing is current or the stored hash differs. A
// current entry saved without a hash is always valid.
func (c *Cache) Invalidated(archivePath, stage, inputHash string) bool {
	manifest := c.readManifest(archivePath)
	if manifest == nil {
		return true
	}
	current, ok := manifest.Current(stage)
	if !ok {
		return true
	}
	if current.InputHash == "" {
		return false
	}
	return current.InputHash != inputHash
}

// Entries returns the entries of stage in version order.
func (c *Cache) Entries(archivePath, stage string) []Entry {
	manifest := c.readManifest(archivePath)
	if manifest == nil {
		return nil
	}
	return append([]Entry(nil), manifest.Entries[stage]...)
}

// Manifest returns the manifest of archivePath, or nil when absent.
func (c *Cache) Manifest(archivePath string) *Manifest {
	return c.readManifest(archivePath)
}

// ComputeHash returns the SHA-256 of the canonical JSON encoding of v. Map
// keys are sorted at every depth, so equal mappings hash equally regardless
// of insertion order.
func ComputeHash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode hash input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Cache) lock(ctx context.Context, archivePath string) (func(), error) {
	key := filepath.Clean(archivePath)
	c.mu.Lock()
	mu, ok := c.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[key] = mu
	}
	c.mu.Unlock()
	mu.Lock()

	dir := cacheDir(archivePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	fileLock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("lock stage cache: %w", err)
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			c.logger.Debug("stage cache unlock failed", logging.Error(err))
		}
		mu.Unlock()
	}, nil
}

func (c *Cache) readManifest(archivePath string) *Manifest {
	path := filepath.Join(cacheDir(archivePath), manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(c.logger, "stage cache manifest unreadable", "cache_manifest_unreadable",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "cache treated as empty"),
			)
		}
		return nil
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		logging.WarnWithContext(c.logger, "stage cache manifest corrupt", "cache_manifest_corrupt",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the manifest to reset the cache"),
			logging.String(logging.FieldImpact, "cache treated as empty"),
		)
		return nil
	}
	return &manifest
}

func (c *Cache) writeManifest(archivePath string, manifest *Manifest) error {
	if err := fileutil.WriteJSONAtomic(filepath.Join(cacheDir(archivePath), manifestFileName), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// maxVersionOnDisk scans the stage directory so versions keep increasing
// even after a manifest was lost.
func (c *Cache) maxVersionOnDisk(archivePath, stage string) int {
	entries, err := os.ReadDir(filepath.Join(cacheDir(archivePath), stage))
	if err != nil {
		return 0
	}
	highest := 0
	for _, entry := range entries {
		match := versionFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func maxVersion(entries []Entry) int {
	highest := 0
	for _, entry := range entries {
		highest = max(highest, entry.Version)
	}
	return highest
}

func cacheDir(archivePath string) string {
	return filepath.Join(archivePath, cacheDirName)
}

func validateStage(stage string) error {
	if strings.TrimSpace(stage) == "" {
		return errors.New("stage name required")
	}
	if strings.ContainsAny(stage, `/\`) || stage == "." || stage == ".." {
		return fmt.Errorf("invalid stage name %q", stage)
	}
	return nil
}
