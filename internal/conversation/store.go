package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/message"
)

// Store keeps every conversation in a single JSON snapshot. All
// mutations rewrite the whole file, so the on-disk state is always a
// consistent collection rather than a partially updated set of files.
type Store struct {
	mu   sync.Mutex
	path string

	activeID      string
	conversations []*Conversation
}

// snapshot is the on-disk shape of the store.
type snapshot struct {
	ActiveID      string          `json:"activeId"`
	Conversations []*Conversation `json:"conversations"`
}

// NewStore opens the collection at ~/.droidpilot/conversations.json,
// creating the directory on first use.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewStoreAt(filepath.Join(homeDir, ".droidpilot", "conversations.json"))
}

// NewStoreAt opens the collection at an explicit path.
func NewStoreAt(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}

	s := &Store{path: path}
	s.load()
	return s, nil
}

// load reads the snapshot. A missing or unreadable file starts the
// collection empty instead of failing: losing history must never keep
// the agent from running.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Logger().Warn("conversation snapshot unreadable, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	s.activeID = snap.ActiveID
	s.conversations = snap.Conversations
	s.sortLocked()
}

// persist writes the whole collection back. Callers hold s.mu.
func (s *Store) persist() error {
	s.sortLocked()

	data, err := json.MarshalIndent(snapshot{
		ActiveID:      s.activeID,
		Conversations: s.conversations,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversations: %w", err)
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].UpdatedAt > s.conversations[j].UpdatedAt
	})
}

func (s *Store) findLocked(id string) *Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Create starts a new conversation with the placeholder title and
// makes it active.
func (s *Store) Create() (*Conversation, error) {
	return s.CreateWithTitle("")
}

// CreateWithTitle starts a new conversation with an explicit title. An
// explicit title is treated like a rename: the first user message will
// not overwrite it. Empty means the placeholder.
func (s *Store) CreateWithTitle(title string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := New()
	if title != "" {
		c.Title = title
	}
	s.conversations = append(s.conversations, c)
	s.activeID = c.ID

	if err := s.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

// Active returns the current conversation, or nil when the collection
// is empty.
func (s *Store) Active() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.activeID)
}

// SwitchActive makes an existing conversation the active one.
func (s *Store) SwitchActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return fmt.Errorf("conversation %s not found", id)
	}
	s.activeID = id
	return s.persist()
}

// Get returns a conversation by ID, or nil.
func (s *Store) Get(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

// Messages returns a copy of a conversation's message list, or nil
// when the conversation does not exist.
func (s *Store) Messages(id string) []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return nil
	}
	out := make([]message.Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// List returns all conversations, most recently updated first.
func (s *Store) List() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// AppendMessages adds messages to a conversation, derives the title
// once the first user message lands, and bumps the update time.
func (s *Store) AppendMessages(id string, msgs ...message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return fmt.Errorf("conversation %s not found", id)
	}

	c.Messages = append(c.Messages, msgs...)
	c.deriveTitle()
	c.UpdatedAt = time.Now().UnixMilli()
	return s.persist()
}

// Rename sets an explicit title. The update time is left alone so a
// rename does not reorder the list.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return fmt.Errorf("conversation %s not found", id)
	}

	c.Title = title
	return s.persist()
}

// Delete removes a conversation along with every screenshot its
// messages reference. When the active conversation goes, the most
// recently updated survivor takes its place.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("conversation %s not found", id)
	}

	for _, m := range s.conversations[idx].Messages {
		if m.ImagePath == "" {
			continue
		}
		if err := os.Remove(m.ImagePath); err != nil && !os.IsNotExist(err) {
			log.Logger().Warn("failed to remove screenshot",
				zap.String("path", m.ImagePath), zap.Error(err))
		}
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.activeID == id {
		s.activeID = ""
		s.sortLocked()
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
		}
	}

	return s.persist()
}
