// Package knowledge is the shared, append-only base of tagged,
// confidence-scored facts. Entries are never mutated or purged by the core;
// staleness is handled by filtering at query time.
package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"agora/internal/protocol"
	"agora/internal/store"
)

const entryPrefix = "knowledge/"

func entryKey(entryID string) string {
	return entryPrefix + entryID
}

// QueryParams filters Query. Tags match when any requested tag is present.
type QueryParams struct {
	Tags          []string
	MinConfidence float64
	Category      string
}

// Publish validates the entry, assigns an entry_id, and appends it.
func Publish(ctx context.Context, st store.Store, entry *protocol.KnowledgeEntry) (*protocol.KnowledgeEntry, error) {
	if entry == nil {
		return nil, protocol.Validationf("nil entry")
	}
	if entry.AuthorAgentID == "" {
		return nil, protocol.Validationf("entry has empty author_agent_id")
	}
	if strings.TrimSpace(entry.Content) == "" {
		return nil, protocol.Validationf("entry has empty content")
	}
	if entry.Confidence < 0 || entry.Confidence > 1 {
		return nil, protocol.Validationf("confidence %v out of range [0,1]", entry.Confidence)
	}

	stored := *entry
	stored.EntryID = uuid.NewString()
	stored.CreatedAt = protocol.Now()

	b, err := json.Marshal(&stored)
	if err != nil {
		return nil, protocol.Storagef("encode entry %s: %v", stored.EntryID, err)
	}
	if err := st.Put(ctx, entryKey(stored.EntryID), b); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Query returns matching entries, newest first.
func Query(ctx context.Context, st store.Store, p QueryParams) ([]*protocol.KnowledgeEntry, error) {
	records, err := st.List(ctx, entryPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]*protocol.KnowledgeEntry, 0, len(records))
	for key, b := range records {
		var entry protocol.KnowledgeEntry
		if err := json.Unmarshal(b, &entry); err != nil {
			return nil, protocol.Storagef("decode %s: %v", key, err)
		}
		if entry.Confidence < p.MinConfidence {
			continue
		}
		if p.Category != "" && entry.Category != p.Category {
			continue
		}
		if len(p.Tags) > 0 && !anyTag(p.Tags, entry.Tags) {
			continue
		}
		out = append(out, &entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

func anyTag(requested, present []string) bool {
	for _, want := range requested {
		for _, have := range present {
			if want == have {
				return true
			}
		}
	}
	return false
}
