package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/jsonc"

	"devfs/internal/logging"
	"devfs/internal/metrics"
)

var (
	logger = logging.GetLogger().WithPrefix("state")

	// ErrCorrupt indicates a document that exists but cannot be parsed
	ErrCorrupt = errors.New("corrupt device document")
)

const (
	// DefaultBackupCount is the number of rolling backups kept.
	DefaultBackupCount = 5

	backupDirName = ".devfs-backups"
	backupPrefix  = "devices-"
	backupSuffix  = ".json.zst"
)

// Manager reads and rewrites the device document on disk. Every save
// first stores a compressed copy of the previous document.
type Manager struct {
	documentPath string
	backupDir    string
	backupCount  int
	mu           sync.Mutex

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// NewManager creates a manager for the document at documentPath. It
// ensures the parent and backup directories exist and are writable.
func NewManager(documentPath string, backupCount int) (*Manager, error) {
	logger.Debug("Creating document manager with path: %s", documentPath)

	absPath, err := filepath.Abs(documentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document path %s: %w", documentPath, err)
	}
	logger.Debug("Resolved document path: %s", absPath)

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create document directory %s: %w", dir, err)
	}

	// Verify write permissions without truncating an existing document
	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", absPath, err)
	}
	f.Close()

	backupDir := filepath.Join(dir, backupDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create backup encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create backup decoder: %w", err)
	}

	if backupCount < 0 {
		backupCount = 0
	}

	logger.Info("Document manager ready (document=%s, backups=%d)", absPath, backupCount)
	return &Manager{
		documentPath: absPath,
		backupDir:    backupDir,
		backupCount:  backupCount,
		encoder:      encoder,
		decoder:      decoder,
		now:          time.Now,
	}, nil
}

// Path returns the absolute document path.
func (m *Manager) Path() string {
	return m.documentPath
}

// Close releases the compression resources.
func (m *Manager) Close() error {
	m.decoder.Close()
	return m.encoder.Close()
}

// Load reads the document from disk. A missing or empty file is an empty
// document. A file that cannot be parsed yields an empty document and an
// error wrapping ErrCorrupt. Comments and trailing commas are accepted.
func (m *Manager) Load() (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() (*Document, error) {
	data, err := os.ReadFile(m.documentPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Trace("No document at %s, using an empty one", m.documentPath)
			return NewDocument(), nil
		}
		return NewDocument(), fmt.Errorf("failed to read document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return NewDocument(), nil
	}

	logger.Trace("Parsing document (%s)", humanize.Bytes(uint64(len(data))))
	doc := NewDocument()
	if err := json.Unmarshal(jsonc.ToJSON(data), doc); err != nil {
		return NewDocument(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Devices == nil {
		doc.Devices = []*Node{}
	}
	return doc, nil
}

// Save rewrites the whole document. The previous content is backed up
// first; a failed backup is logged and does not stop the save.
func (m *Manager) Save(doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.save(doc)
	return err
}

func (m *Manager) save(doc *Document) (int, error) {
	size, err := m.write(doc)
	metrics.RecordDocumentWrite(size, err)
	return size, err
}

func (m *Manager) write(doc *Document) (int, error) {
	if doc.Devices == nil {
		doc.Devices = []*Node{}
	}

	if err := m.createBackup(); err != nil {
		logger.Warn("Failed to create backup: %v", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal document: %w", err)
	}

	tmp := m.documentPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, m.documentPath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to replace document: %w", err)
	}

	// Verify the write
	written, err := os.ReadFile(m.documentPath)
	if err != nil {
		return 0, fmt.Errorf("failed to verify written document: %w", err)
	}
	if len(written) != len(data) {
		return 0, fmt.Errorf("document is %d bytes after write, expected %d", len(written), len(data))
	}

	logger.Debug("Document saved (%s)", humanize.Bytes(uint64(len(data))))
	return len(data), nil
}

// Reset replaces the document with an empty one.
func (m *Manager) Reset() error {
	logger.Info("Resetting device document %s", m.documentPath)
	return m.Save(NewDocument())
}

// createBackup stores a compressed copy of the current document
func (m *Manager) createBackup() error {
	if m.backupCount == 0 {
		return nil
	}

	data, err := os.ReadFile(m.documentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	timestamp := m.now().Format("20060102-150405.000000000")
	backupPath := filepath.Join(m.backupDir, backupPrefix+timestamp+backupSuffix)

	compressed := m.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	logger.Trace("Creating backup %s (%s -> %s)", backupPath,
		humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(compressed))))
	if err := os.WriteFile(backupPath, compressed, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return m.cleanupOldBackups()
}

// Backups lists the backup files, newest first.
func (m *Manager) Backups() ([]string, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		names = append(names, name)
	}

	// Timestamps sort lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(m.backupDir, name)
	}
	return paths, nil
}

// ReadBackup returns the decompressed document stored in a backup file.
func (m *Manager) ReadBackup(path string) (*Document, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	data, err := m.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress backup %s: %w", path, err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(jsonc.ToJSON(data), doc); err != nil {
		return nil, fmt.Errorf("%w: backup %s: %v", ErrCorrupt, path, err)
	}
	return doc, nil
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones
func (m *Manager) cleanupOldBackups() error {
	backups, err := m.Backups()
	if err != nil {
		return err
	}

	for i := m.backupCount; i < len(backups); i++ {
		logger.Trace("Removing old backup: %s", backups[i])
		if err := os.Remove(backups[i]); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i], err)
		}
	}
	return nil
}
