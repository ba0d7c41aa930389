// Package registry persists and retrieves agent manifests in the shared
// medium. Every call re-reads the medium; no in-process view is trusted
// across processes, so concurrently registered peers become visible on the
// next call.
package registry

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"agora/internal/protocol"
	"agora/internal/store"
)

// DefaultLivenessWindow is how long after its last registration or heartbeat
// an agent is still reported active.
const DefaultLivenessWindow = 5 * time.Minute

const keyPrefix = "agents/"

func agentKey(agentID string) string {
	return keyPrefix + agentID
}

// ListParams filters ListAgents.
type ListParams struct {
	AgentType  string
	ActiveOnly bool
}

// Register validates the manifest, stamps its derived fields, and replaces
// any prior manifest stored under the same agent_id (last write wins, no
// merge). The stored manifest is returned.
func Register(ctx context.Context, st store.Store, m *protocol.AgentManifest) (*protocol.AgentManifest, error) {
	if m == nil {
		return nil, protocol.Validationf("nil manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	stored := *m
	stored.TotalActions = stored.CountActions()
	stored.LastSeen = protocol.Now()
	stored.Active = true

	b, err := json.Marshal(&stored)
	if err != nil {
		return nil, protocol.Storagef("encode manifest %s: %v", stored.Identity.AgentID, err)
	}
	if err := st.Put(ctx, agentKey(stored.Identity.AgentID), b); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Get returns the manifest for agentID with its active flag derived against
// the liveness window (zero means DefaultLivenessWindow).
func Get(ctx context.Context, st store.Store, agentID string, window time.Duration) (*protocol.AgentManifest, error) {
	if agentID == "" {
		return nil, protocol.Validationf("empty agent_id")
	}
	b, err := st.Get(ctx, agentKey(agentID))
	if err != nil {
		return nil, err
	}
	return decode(agentKey(agentID), b, window)
}

// List returns all manifests, optionally filtered by agent type and
// liveness, sorted by agent_id ascending for deterministic output.
func List(ctx context.Context, st store.Store, p ListParams, window time.Duration) ([]*protocol.AgentManifest, error) {
	records, err := st.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]*protocol.AgentManifest, 0, len(records))
	for key, b := range records {
		m, err := decode(key, b, window)
		if err != nil {
			return nil, err
		}
		if p.AgentType != "" && m.Identity.AgentType != p.AgentType {
			continue
		}
		if p.ActiveOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.AgentID < out[j].Identity.AgentID
	})
	return out, nil
}

// Heartbeat refreshes last_seen for an already registered agent without
// re-sending its capabilities.
func Heartbeat(ctx context.Context, st store.Store, agentID string) error {
	m, err := Get(ctx, st, agentID, 0)
	if err != nil {
		return err
	}
	m.LastSeen = protocol.Now()
	m.Active = true
	b, err := json.Marshal(m)
	if err != nil {
		return protocol.Storagef("encode manifest %s: %v", agentID, err)
	}
	return st.Put(ctx, agentKey(agentID), b)
}

func decode(key string, b []byte, window time.Duration) (*protocol.AgentManifest, error) {
	var m protocol.AgentManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, protocol.Storagef("decode %s: %v", key, err)
	}
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	m.Active = false
	if last, err := protocol.ParseTime(m.LastSeen); err == nil {
		m.Active = time.Since(last) <= window
	}
	return &m, nil
}
