// Package store is the persistence adapter: one JSON value per fixed key in
// an embedded badger database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/jackzampolin/memoir/internal/normalize"
	"github.com/jackzampolin/memoir/internal/types"
)

// ErrNotFound is returned by Load when nothing is stored under a key.
var ErrNotFound = errors.New("key not found")

// Key names one persisted slice of pipeline state.
type Key string

const (
	KeySelectedSubject Key = "selected_subject"
	KeySelectedText    Key = "selected_text"
	KeyTone            Key = "tone"
	KeyContext         Key = "context"
	KeyPostsResult     Key = "posts_result"
	KeyImageResult     Key = "image_result"
	KeyVideoResult     Key = "video_result"
	KeyActiveTab       Key = "active_tab"
	KeyHistory         Key = "history"
)

// Keys lists every key the pipeline persists.
var Keys = []Key{
	KeySelectedSubject,
	KeySelectedText,
	KeyTone,
	KeyContext,
	KeyPostsResult,
	KeyImageResult,
	KeyVideoResult,
	KeyActiveTab,
	KeyHistory,
}

// Record is the stored form of one key.
type Record struct {
	Key       string
	Value     []byte // JSON
	UpdatedAt time.Time
}

// Config configures the store.
type Config struct {
	Path   string
	Logger *slog.Logger
}

// Store is a JSON key/value store backed by badgerhold.
type Store struct {
	db     *badgerhold.Store
	logger *slog.Logger
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug("state store opened", "path", cfg.Path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save JSON-encodes v and writes it under key. Media results holding raw
// bytes are encoded into a data URI first, so a reload never finds a result
// that pointed at memory.
func (s *Store) Save(ctx context.Context, key Key, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(encodeMedia(v))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	record := Record{Key: string(key), Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.db.Upsert(string(key), &record); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Load decodes the value stored under key into v.
// It returns ErrNotFound when the key has never been saved.
func (s *Store) Load(ctx context.Context, key Key, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var record Record
	err := s.db.Get(string(key), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}

	if err := json.Unmarshal(record.Value, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func encodeMedia(v any) any {
	switch m := v.(type) {
	case *types.MediaResult:
		return EncodeMedia(m)
	case types.MediaResult:
		return EncodeMedia(&m)
	default:
		return v
	}
}

// EncodeMedia returns m with any raw bytes moved into a data URI.
// Results without raw bytes are returned unchanged.
func EncodeMedia(m *types.MediaResult) *types.MediaResult {
	if m == nil || len(m.Data) == 0 {
		return m
	}
	out := m.Clone()
	mime := out.ContentType
	if mime == "" {
		mime = normalize.SniffSignature(out.Data)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	out.MediaURL = normalize.DataURI(mime, out.Data)
	out.Data = nil
	out.ContentType = ""
	return out
}
