package session

import (
	"testing"
	"time"

	"github.com/n4ar/sabi/internal/domain/entity"
)

func TestSaveExcludesSystemMessages(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	conv := []entity.Message{
		entity.NewMessage(entity.RoleSystem, "preamble"),
		entity.NewMessage(entity.RoleUser, "hello"),
		entity.NewMessage(entity.RoleModel, "hi there"),
	}
	at := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	id := NewID(at)

	if err := s.Save(id, "chat", at, "/home/user/project", conv); err != nil {
		t.Fatal(err)
	}

	_, record, err := s.Load(id, "preamble")
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages (System excluded), got %d", len(record.Messages))
	}
}

func TestLoadRestoresSystemPreamble(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	id := NewID(at)

	conv := []entity.Message{entity.NewMessage(entity.RoleUser, "hello")}
	if err := s.Save(id, "chat", at, "/tmp", conv); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := s.Load(id, "you are a helpful agent")
	if err != nil {
		t.Fatal(err)
	}
	sys, ok := loaded.System()
	if !ok || sys.Content() != "you are a helpful agent" {
		t.Fatalf("expected restored system preamble, got %+v ok=%v", sys, ok)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected preamble + 1 user message, got %d", loaded.Len())
	}
}

func TestNewIDFormat(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 30, 45, 0, time.UTC)
	if got := NewID(at); got != "20260305_093045" {
		t.Fatalf("got %q", got)
	}
}

func TestListSortsByTimestampDescending(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Save(NewID(older), "old", older, "/tmp", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(NewID(newer), "new", newer, "/tmp", nil); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].Name != "new" || list[1].Name != "old" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestDeleteRemovesSessionFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	id := NewID(at)
	if err := s.Save(id, "chat", at, "/tmp", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(id, ""); err == nil {
		t.Fatal("expected load to fail after delete")
	}
}
