package memory

import (
	"context"
	"sync"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/pkg/utils"
)

// MemoryConversationBridge is the reference ConversationBridge for
// single-node runs and tests. The real conversation store lives in an
// external collaborator service.
type MemoryConversationBridge struct {
	mu            sync.Mutex
	conversations map[domain.ConversationID]*domain.Conversation
	systemLines   map[domain.ConversationID][]string
}

func NewMemoryConversationBridge() *MemoryConversationBridge {
	return &MemoryConversationBridge{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		systemLines:   make(map[domain.ConversationID][]string),
	}
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	copied := *c
	copied.Recipients = append([]domain.UserID(nil), c.Recipients...)
	return &copied
}

func (b *MemoryConversationBridge) CreateConversation(ctx context.Context, streamID domain.StreamID, recipients []domain.UserID) (*domain.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv := &domain.Conversation{
		ID:         domain.ConversationID(utils.GenerateSessionID()),
		StreamID:   streamID,
		Recipients: append([]domain.UserID(nil), recipients...),
		CreatedAt:  time.Now(),
	}
	b.conversations[conv.ID] = conv
	return copyConversation(conv), nil
}

func (b *MemoryConversationBridge) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, ok := b.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

func (b *MemoryConversationBridge) AddRecipient(ctx context.Context, id domain.ConversationID, user domain.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, ok := b.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	for _, r := range conv.Recipients {
		if r == user {
			return nil
		}
	}
	conv.Recipients = append(conv.Recipients, user)
	return nil
}

func (b *MemoryConversationBridge) PostSystemLine(ctx context.Context, id domain.ConversationID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conversations[id]; !ok {
		return domain.ErrConversationNotFound
	}
	b.systemLines[id] = append(b.systemLines[id], text)
	return nil
}

// SystemLines returns the lines recorded for a conversation, used by tests.
func (b *MemoryConversationBridge) SystemLines(id domain.ConversationID) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.systemLines[id]...)
}

var _ ports.ConversationBridge = (*MemoryConversationBridge)(nil)
