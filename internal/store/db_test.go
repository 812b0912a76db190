package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmcdole/kinotv/internal/domain"
)

func TestOpen_ScopesByServer(t *testing.T) {
	base := t.TempDir()
	db, err := Open(base, "http://Media.local:8096/")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if !db.Persistent() {
		t.Fatal("Open with a directory should be persistent")
	}
	matches, _ := filepath.Glob(filepath.Join(base, "*", "kinotv.db"))
	if len(matches) != 1 {
		t.Errorf("expected one server-scoped db file, got %v", matches)
	}
	if hashServerURL("http://media.local:8096") != hashServerURL("HTTP://MEDIA.LOCAL:8096/") {
		t.Error("server hash should ignore case and trailing slash")
	}
}

func TestCodec(t *testing.T) {
	c, err := newCodec()
	if err != nil {
		t.Fatalf("newCodec() error = %v", err)
	}
	defer c.close()

	tests := []struct {
		name   string
		ids    []string
		format byte
	}{
		{"small stays json", []string{"a", "b"}, formatJSON},
		{"large is compressed", []string{strings.Repeat("abcdef", 64)}, formatZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := c.marshal(suggestionEntry{IDs: tt.ids})
			if err != nil {
				t.Fatalf("marshal() error = %v", err)
			}
			if raw[0] != tt.format {
				t.Errorf("format = %q, want %q", raw[0], tt.format)
			}
			var out suggestionEntry
			if err := c.unmarshal(raw, &out); err != nil {
				t.Fatalf("unmarshal() error = %v", err)
			}
			if len(out.IDs) != len(tt.ids) || out.IDs[0] != tt.ids[0] {
				t.Errorf("unmarshal() = %v, want %v", out.IDs, tt.ids)
			}
		})
	}

	if err := c.unmarshal([]byte("x"), &suggestionEntry{}); err == nil {
		t.Error("unmarshal(short) should fail")
	}
	if err := c.unmarshal([]byte("q{}"), &suggestionEntry{}); err == nil {
		t.Error("unmarshal(unknown format) should fail")
	}
}

func TestSessionStore(t *testing.T) {
	db, _ := openTestDB(t)
	defer db.Close()
	s := NewSessionStore(db)

	creds := domain.Credentials{ServerID: "srv", ServerURL: "http://x", UserID: "u1", Token: "tok"}
	if err := s.Save(creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok := s.Load("srv", "u1")
	if !ok || got != creds {
		t.Errorf("Load() = %+v (ok=%v), want %+v", got, ok, creds)
	}
	if _, ok := s.Load("srv", "u2"); ok {
		t.Error("Load(other user) should miss")
	}

	if err := s.Delete("srv", "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := s.Load("srv", "u1"); ok {
		t.Error("Load() after Delete should miss")
	}
}

func TestJobLedger(t *testing.T) {
	db, _ := openTestDB(t)
	defer db.Close()
	l := NewJobLedger(db)

	if _, ok := l.Last("suggestions"); ok {
		t.Error("Last() on empty ledger should miss")
	}
	if err := l.Record("suggestions", JobRecord{State: domain.JobSucceeded, RunID: "r1", UpdatedAt: 42}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	rec, ok := l.Last("suggestions")
	if !ok || rec.State != domain.JobSucceeded || rec.RunID != "r1" {
		t.Errorf("Last() = %+v (ok=%v)", rec, ok)
	}
	if err := l.Forget("suggestions"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, ok := l.Last("suggestions"); ok {
		t.Error("Last() after Forget should miss")
	}
}
