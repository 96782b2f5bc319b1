package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/memoir/internal/types"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, dir
}

func TestStore_SaveLoad(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Save(ctx, KeyTone, "reflective"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	var tone string
	if err := s.Load(ctx, KeyTone, &tone); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tone != "reflective" {
		t.Errorf("tone = %q", tone)
	}

	if err := s.Save(ctx, KeyTone, "wry"); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	s.Load(ctx, KeyTone, &tone)
	if tone != "wry" {
		t.Errorf("tone after overwrite = %q", tone)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	var v string
	err := s.Load(context.Background(), KeyActiveTab, &v)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_BinaryMediaEncodedOnSave(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}
	result := &types.MediaResult{
		OriginatingPrompt: "a lighthouse",
		Data:              png,
		ContentType:       "image/png",
	}
	if err := s.Save(ctx, KeyImageResult, result); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if result.MediaURL != "" || result.Data == nil {
		t.Error("Save must not mutate the caller's value")
	}

	var loaded types.MediaResult
	if err := s.Load(ctx, KeyImageResult, &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(loaded.MediaURL, "data:image/png;base64,") {
		t.Errorf("MediaURL = %q", loaded.MediaURL)
	}
	if loaded.OriginatingPrompt != "a lighthouse" {
		t.Errorf("OriginatingPrompt = %q", loaded.OriginatingPrompt)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	when := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	type stamped struct {
		At time.Time `json:"at"`
	}
	if err := s.Save(ctx, KeyHistory, []stamped{{At: when}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	var got []stamped
	if err := reopened.Load(ctx, KeyHistory, &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || !got[0].At.Equal(when) {
		t.Errorf("got %+v, want timestamp %s", got, when)
	}
}
