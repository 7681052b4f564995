// In-memory conversation storage, used for tests and ephemeral sessions.
//
// Information Hiding:
// - Locking discipline
// - Backing data structures

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/richinex/relay/model"
)

type memoryTopic struct {
	name      string
	messages  []model.Message
	updatedAt time.Time
}

// MemoryStorage implements ConversationStorage in process memory.
// Safe for concurrent use.
type MemoryStorage struct {
	mu     sync.RWMutex
	topics map[string]*memoryTopic
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{topics: make(map[string]*memoryTopic)}
}

// Save replaces the stored message list for a topic.
func (s *MemoryStorage) Save(_ context.Context, topicID string, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.Message, len(messages))
	copy(copied, messages)

	topic, ok := s.topics[topicID]
	if !ok {
		topic = &memoryTopic{}
		s.topics[topicID] = topic
	}
	topic.messages = copied
	topic.updatedAt = time.Now()
	return nil
}

// Load returns the stored messages for a topic, empty if unknown.
func (s *MemoryStorage) Load(_ context.Context, topicID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topic, ok := s.topics[topicID]
	if !ok {
		return []model.Message{}, nil
	}
	copied := make([]model.Message, len(topic.messages))
	copy(copied, topic.messages)
	return copied, nil
}

// Delete removes a topic and its messages.
func (s *MemoryStorage) Delete(_ context.Context, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topicID)
	return nil
}

// ListTopics returns all topic IDs, most recently updated first.
func (s *MemoryStorage) ListTopics(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(s.topics))
	for id, t := range s.topics {
		entries = append(entries, entry{id, t.updatedAt})
	}
	// Insertion sort keeps this simple; topic counts are small.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].at.After(entries[j-1].at); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// Rename sets the display name of a topic. Unknown topics are an error, not
// an implicit create.
func (s *MemoryStorage) Rename(_ context.Context, topicID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	topic, ok := s.topics[topicID]
	if !ok {
		return fmt.Errorf("unknown topic: %s", topicID)
	}
	topic.name = name
	topic.updatedAt = time.Now()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStorage) Close() error {
	return nil
}

// Verify MemoryStorage implements ConversationStorage
var _ ConversationStorage = (*MemoryStorage)(nil)
