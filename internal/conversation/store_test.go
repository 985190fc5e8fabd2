package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/droidpilot/droidpilot/internal/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreAt(filepath.Join(t.TempDir(), "conversations.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateBecomesActive(t *testing.T) {
	s := newTestStore(t)

	c, err := s.Create()
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != DefaultTitle {
		t.Errorf("new conversation title = %q, want %q", c.Title, DefaultTitle)
	}

	active := s.Active()
	if active == nil || active.ID != c.ID {
		t.Errorf("active = %v, want %s", active, c.ID)
	}
}

func TestCreateWithExplicitTitleSticks(t *testing.T) {
	s := newTestStore(t)

	c, err := s.CreateWithTitle("Morning routine")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(c.ID, message.UserMessage("open the alarm app")); err != nil {
		t.Fatal(err)
	}

	if got := s.Get(c.ID).Title; got != "Morning routine" {
		t.Errorf("title = %q, explicit title should not be derived over", got)
	}
}

func TestMessagesReturnsIndependentCopy(t *testing.T) {
	s := newTestStore(t)

	c, err := s.Create()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(c.ID, message.UserMessage("open settings")); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages(c.ID)
	if len(msgs) != 1 || msgs[0].Content != "open settings" {
		t.Fatalf("messages = %+v", msgs)
	}

	// Mutating the returned slice must not reach the store.
	msgs[0].Content = "scribbled over"
	if got := s.Messages(c.ID)[0].Content; got != "open settings" {
		t.Errorf("stored content = %q, caller mutation leaked in", got)
	}

	if got := s.Messages("no-such-id"); got != nil {
		t.Errorf("messages for unknown id = %+v, want nil", got)
	}
}

func TestTitleDerivedFromFirstUserMessage(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"open settings", "open settings"},
		{strings.Repeat("a", 20), strings.Repeat("a", 20)},
		{strings.Repeat("a", 21), strings.Repeat("a", 20)},
		{strings.Repeat("x", 100), strings.Repeat("x", 20)},
	}

	for _, tc := range cases {
		s := newTestStore(t)
		c, err := s.Create()
		if err != nil {
			t.Fatal(err)
		}

		if err := s.AppendMessages(c.ID, message.UserMessage(tc.content)); err != nil {
			t.Fatal(err)
		}

		if got := s.Get(c.ID).Title; got != tc.want {
			t.Errorf("title for %d-rune content = %q, want %q", len([]rune(tc.content)), got, tc.want)
		}
	}
}

func TestTitleDerivationRespectsRunes(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	content := strings.Repeat("设", 25)
	if err := s.AppendMessages(c.ID, message.UserMessage(content)); err != nil {
		t.Fatal(err)
	}

	got := s.Get(c.ID).Title
	if n := len([]rune(got)); n != 20 {
		t.Errorf("title has %d runes, want 20", n)
	}
	if !strings.HasPrefix(content, got) {
		t.Errorf("title %q is not a prefix of the message", got)
	}
}

func TestRenameSticksOverDerivation(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	if err := s.Rename(c.ID, "Groceries run"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(c.ID, message.UserMessage("buy milk")); err != nil {
		t.Fatal(err)
	}

	if got := s.Get(c.ID).Title; got != "Groceries run" {
		t.Errorf("title = %q, rename should not be overwritten", got)
	}
}

func TestSecondUserMessageDoesNotRetitle(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	s.AppendMessages(c.ID, message.UserMessage("first task"))
	s.AppendMessages(c.ID, message.UserMessage("second task"))

	if got := s.Get(c.ID).Title; got != "first task" {
		t.Errorf("title = %q, want %q", got, "first task")
	}
}

func TestListOrderedByUpdate(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.Create()
	b, _ := s.Create()

	// Force distinct timestamps, then touch a so it jumps ahead.
	time.Sleep(2 * time.Millisecond)
	if err := s.AppendMessages(a.ID, message.UserMessage("hello")); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, a.ID, b.ID)
	}
}

func TestRenameLeavesOrder(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.Create()
	b, _ := s.Create()
	time.Sleep(2 * time.Millisecond)
	s.AppendMessages(a.ID, message.UserMessage("hello"))

	if err := s.Rename(b.ID, "renamed"); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if list[0].ID != a.ID {
		t.Error("rename should not move a conversation to the front")
	}
}

func TestDeleteCascadesScreenshots(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	shot := filepath.Join(t.TempDir(), "step-1.png")
	if err := os.WriteFile(shot, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	msg := message.AssistantMessage("tapped", "", "tap(1, 2)", shot)
	if err := s.AppendMessages(c.ID, msg); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(c.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(shot); !os.IsNotExist(err) {
		t.Error("screenshot should be removed with its conversation")
	}
	if s.Get(c.ID) != nil {
		t.Error("conversation should be gone")
	}
}

func TestDeleteActiveFallsToMostRecent(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.Create()
	b, _ := s.Create()
	time.Sleep(2 * time.Millisecond)
	s.AppendMessages(a.ID, message.UserMessage("hello"))

	// b is active (created last); deleting it should hand the slot to
	// the most recently updated survivor, which is a.
	if err := s.SwitchActive(b.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(b.ID); err != nil {
		t.Fatal(err)
	}

	active := s.Active()
	if active == nil || active.ID != a.ID {
		t.Errorf("active after delete = %v, want %s", active, a.ID)
	}
}

func TestDeleteLastLeavesNoActive(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	if err := s.Delete(c.ID); err != nil {
		t.Fatal(err)
	}
	if s.Active() != nil {
		t.Error("empty collection should have no active conversation")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")

	s, err := NewStoreAt(path)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := s.Create()
	s.AppendMessages(c.ID,
		message.UserMessage("open settings"),
		message.AssistantMessage("tapping", "the icon is visible", "tap(10, 20)", ""),
	)

	reopened, err := NewStoreAt(path)
	if err != nil {
		t.Fatal(err)
	}

	got := reopened.Get(c.ID)
	if got == nil {
		t.Fatal("conversation missing after reload")
	}
	if got.Title != "open settings" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(got.Messages))
	}
	if got.Messages[1].Action != "tap(10, 20)" {
		t.Errorf("action = %q", got.Messages[1].Action)
	}

	active := reopened.Active()
	if active == nil || active.ID != c.ID {
		t.Error("active ID should survive a reload")
	}
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStoreAt(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.List()) != 0 {
		t.Error("corrupt snapshot should start the collection empty")
	}
	if s.Active() != nil {
		t.Error("corrupt snapshot should leave no active conversation")
	}
}

func TestNonUserMessagesNeverTitle(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create()

	s.AppendMessages(c.ID, message.AssistantMessage("observing", "", "", ""))

	if got := s.Get(c.ID).Title; got != DefaultTitle {
		t.Errorf("title = %q, want placeholder until a user message lands", got)
	}
}
