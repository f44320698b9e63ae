package pipeline

import (
	"errors"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/storage"
)

// LoadHistory returns the client's stored chat messages, oldest first.
func LoadHistory(s storage.DocumentStore, clientID string) ([]oracle.Message, error) {
	doc, err := storage.Get(s, storage.ChatHistory, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list, _ := doc["messages"].([]any)
	out := make([]oracle.Message, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if role == "" || content == "" {
			continue
		}
		out = append(out, oracle.Message{Role: oracle.Role(role), Content: content})
	}
	return out, nil
}

// SaveHistory replaces the client's stored chat messages.
func SaveHistory(s storage.DocumentStore, clientID string, history []oracle.Message) error {
	msgs := make([]any, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	return storage.Put(s, storage.ChatHistory, clientID, document.Document{"messages": msgs})
}
