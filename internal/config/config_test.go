package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("expected no error for a missing config file, got %v", err)
	}
	if c.Nickname != "" || len(c.BootstrapPeers) != 0 {
		t.Fatalf("expected a zero-value config, got %+v", c)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatmesh.json")
	want := Config{Nickname: "alice", BootstrapPeers: []string{"AAAA", "BBBB"}}

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Nickname != want.Nickname || len(got.BootstrapPeers) != len(want.BootstrapPeers) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatmesh.json")
	if err := Save(path, Config{Nickname: "alice"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := Save(path, Config{Nickname: "bob"}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Nickname != "bob" {
		t.Fatalf("expected the later save to win, got nickname %q", got.Nickname)
	}
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "chatmesh.json")
	if err := Save(path, Config{Nickname: "carol"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Nickname != "carol" {
		t.Fatalf("got %+v", got)
	}
}
