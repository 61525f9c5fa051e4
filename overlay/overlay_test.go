package overlay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "overlay.json"))
	want := State{Wins: 1, Losses: 2, Draws: 3, URL: "x"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := store.Load(); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("Load succeeded on a corrupt file")
	}
}

func TestStoreSaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs", "assets", "overlay.json")
	store := NewStore(path)
	if err := store.Save(State{Wins: 7}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Wins != 7 {
		t.Fatalf("Wins = %d, want 7", got.Wins)
	}
}
