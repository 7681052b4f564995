// Conversation storage interface.
//
// A topic is one conversation thread. Stores persist the full message
// records, including metadata produced during completion (tool responses,
// web search results, metrics), so a reloaded topic renders exactly as it
// was left.

package storage

import (
	"context"

	"github.com/richinex/relay/model"
)

// ConversationStorage persists topics and their messages.
type ConversationStorage interface {
	// Save replaces the stored message list for a topic.
	Save(ctx context.Context, topicID string, messages []model.Message) error

	// Load returns the stored messages for a topic, empty if unknown.
	Load(ctx context.Context, topicID string) ([]model.Message, error)

	// Delete removes a topic and its messages.
	Delete(ctx context.Context, topicID string) error

	// ListTopics returns all topic IDs, most recently updated first.
	ListTopics(ctx context.Context) ([]string, error)

	// Rename sets the display name of an existing topic; renaming an
	// unknown topic is an error.
	Rename(ctx context.Context, topicID, name string) error

	// Close releases resources held by the storage.
	Close() error
}
