package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommandRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetCommand(ctx, "channel", "Discord", "https://example.invalid/discord", "mod"); err != nil {
		t.Fatalf("SetCommand: %v", err)
	}

	c, err := s.Command(ctx, "channel", "discord")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if c.Response != "https://example.invalid/discord" || c.Setter != "mod" || c.Uses != 1 {
		t.Errorf("got %+v", c)
	}

	// Commands are per channel.
	if _, err := s.Command(ctx, "other", "discord"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Command in other channel = %v, want ErrNotFound", err)
	}

	if err := s.SetCommand(ctx, "channel", "discord", "updated", "owner"); err != nil {
		t.Fatalf("SetCommand replace: %v", err)
	}
	c, err = s.Command(ctx, "channel", "discord")
	if err != nil {
		t.Fatal(err)
	}
	if c.Response != "updated" || c.Setter != "owner" || c.Uses != 2 {
		t.Errorf("after replace got %+v", c)
	}
}

func TestDeleteCommand(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SetCommand(ctx, "channel", "a", "1", "")
	s.SetCommand(ctx, "channel", "b", "2", "")

	if err := s.DeleteCommand(ctx, "channel", "a"); err != nil {
		t.Fatalf("DeleteCommand: %v", err)
	}
	if err := s.DeleteCommand(ctx, "channel", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteCommand = %v, want ErrNotFound", err)
	}

	names, err := s.Commands(ctx, "channel")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"b"}) {
		t.Errorf("Commands = %v, want [b]", names)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SetCommand(ctx, "channel", "rare", "r", "")
	s.SetCommand(ctx, "channel", "popular", "p", "")
	for i := 0; i < 3; i++ {
		s.Command(ctx, "channel", "popular")
	}
	s.Command(ctx, "channel", "rare")

	stats, err := s.Stats(ctx, "channel")
	if err != nil {
		t.Fatal(err)
	}
	want := []Stat{{"popular", 3}, {"rare", 1}}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestRecentLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.AddLog(ctx, LogEntry{Channel: "channel", Viewer: "viewer", Action: fmt.Sprintf("action %d", i)}); err != nil {
			t.Fatalf("AddLog: %v", err)
		}
	}
	s.AddLog(ctx, LogEntry{Channel: "other", Viewer: "viewer", Action: "elsewhere"})

	logs, err := s.RecentLogs(ctx, "channel", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Action != "action 2" || logs[1].Action != "action 1" {
		t.Errorf("RecentLogs = %+v, want newest first", logs)
	}

	all, err := s.RecentLogs(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Action != "elsewhere" {
		t.Errorf("RecentLogs(all) = %+v", all)
	}
}

func TestAddLogMaxEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < maxEntries+10; i++ {
		if err := s.AddLog(ctx, LogEntry{Channel: "channel", Viewer: "v", Action: fmt.Sprint(i)}); err != nil {
			t.Fatalf("AddLog %d: %v", i, err)
		}
	}

	logs, err := s.RecentLogs(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != maxEntries {
		t.Fatalf("kept %d entries, want %d", len(logs), maxEntries)
	}
	if logs[0].Action != fmt.Sprint(maxEntries+9) || logs[len(logs)-1].Action != "10" {
		t.Errorf("kept %s..%s, want the newest entries", logs[0].Action, logs[len(logs)-1].Action)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tmichat.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	s.SetCommand(ctx, "channel", "persisted", "yes", "")
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Command(ctx, "channel", "persisted"); err != nil {
		t.Errorf("command lost across reopen: %v", err)
	}
}
