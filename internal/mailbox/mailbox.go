// Package mailbox delivers direct messages between agents. A message is one
// record under the recipient's inbox prefix, so delivery is a single append
// and at-least-once: a retried send writes a second record, and the core
// does not deduplicate.
package mailbox

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"agora/internal/protocol"
	"agora/internal/registry"
	"agora/internal/store"
)

const messagePrefix = "messages/"

func inboxPrefix(agentID string) string {
	return messagePrefix + agentID + "/"
}

func messageKey(agentID, messageID string) string {
	return inboxPrefix(agentID) + messageID
}

// Send validates that the recipient is a registered agent, assigns a
// message_id, and appends the message to the recipient's inbox.
func Send(ctx context.Context, st store.Store, msg *protocol.Message) (*protocol.Message, error) {
	if msg == nil {
		return nil, protocol.Validationf("nil message")
	}
	if msg.FromAgent == "" {
		return nil, protocol.Validationf("message has empty from_agent")
	}
	if strings.TrimSpace(msg.ToAgent) == "" {
		return nil, protocol.Validationf("message has empty to_agent")
	}
	if _, err := registry.Get(ctx, st, msg.ToAgent, 0); err != nil {
		return nil, err
	}

	stored := *msg
	stored.MessageID = uuid.NewString()
	stored.CreatedAt = protocol.Now()
	stored.Read = false

	b, err := json.Marshal(&stored)
	if err != nil {
		return nil, protocol.Storagef("encode message %s: %v", stored.MessageID, err)
	}
	if err := st.Put(ctx, messageKey(stored.ToAgent, stored.MessageID), b); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Inbox returns messages addressed to agentID, oldest first.
func Inbox(ctx context.Context, st store.Store, agentID string, unreadOnly bool) ([]*protocol.Message, error) {
	if agentID == "" {
		return nil, protocol.Validationf("empty agent_id")
	}
	records, err := st.List(ctx, inboxPrefix(agentID))
	if err != nil {
		return nil, err
	}

	out := make([]*protocol.Message, 0, len(records))
	for key, b := range records {
		var msg protocol.Message
		if err := json.Unmarshal(b, &msg); err != nil {
			return nil, protocol.Storagef("decode %s: %v", key, err)
		}
		// A record under a deeper prefix belongs to another recipient.
		if msg.ToAgent != agentID {
			continue
		}
		if unreadOnly && msg.Read {
			continue
		}
		out = append(out, &msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out, nil
}

// MarkRead sets the read flag on one of the actor's own messages. Messages in
// other inboxes are not addressable here, so only the recipient can mark.
func MarkRead(ctx context.Context, st store.Store, actor, messageID string) (*protocol.Message, error) {
	if actor == "" {
		return nil, protocol.Validationf("empty actor agent_id")
	}
	if messageID == "" {
		return nil, protocol.Validationf("empty message_id")
	}
	key := messageKey(actor, messageID)
	b, err := st.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var msg protocol.Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, protocol.Storagef("decode %s: %v", key, err)
	}
	if msg.Read {
		return &msg, nil
	}
	msg.Read = true
	b, err = json.Marshal(&msg)
	if err != nil {
		return nil, protocol.Storagef("encode message %s: %v", messageID, err)
	}
	if err := st.Put(ctx, key, b); err != nil {
		return nil, err
	}
	return &msg, nil
}
