// Package protocol defines the wire types shared by every agent on the
// network. Field names are the interoperability contract: independently
// implemented agents exchange these records as JSON through the shared
// storage medium, so the json tags here must not change.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Params is an opaque key/value payload. The core never validates its
// contents; interpretation belongs to the fulfillment side.
type Params map[string]any

// AgentIdentity describes one agent. Created once per agent process lifetime
// and never mutated; agent_id is globally unique.
type AgentIdentity struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	Ticker    string `json:"ticker"`
	AgentType string `json:"agent_type"`
	Specialty string `json:"specialty"`
}

// Capability is a single advertised action, the leaf unit of task matching.
type Capability struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CapabilityGroup clusters related capabilities under a skill id that is
// unique within one manifest.
type CapabilityGroup struct {
	SkillID     string       `json:"skill_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Actions     []Capability `json:"actions"`
}

// AgentManifest is an agent's published description: identity plus every
// capability it offers. The latest registration for an agent_id replaces the
// prior one wholesale.
type AgentManifest struct {
	Identity     AgentIdentity     `json:"identity"`
	Capabilities []CapabilityGroup `json:"capabilities"`

	// Derived fields, stamped by the registry.
	TotalActions int    `json:"total_actions"`
	LastSeen     string `json:"last_seen"`
	Active       bool   `json:"active"`
}

// CountActions returns the number of capabilities across all groups.
func (m *AgentManifest) CountActions() int {
	n := 0
	for _, g := range m.Capabilities {
		n += len(g.Actions)
	}
	return n
}

// Validate checks the invariants a manifest must hold before registration:
// a non-empty, slash-free agent_id and skill ids unique within the manifest.
// The agent_id becomes a single store key segment, so a '/' would let one
// agent's records nest inside another's prefix.
func (m *AgentManifest) Validate() error {
	if m.Identity.AgentID == "" {
		return Validationf("manifest identity has empty agent_id")
	}
	if strings.ContainsRune(m.Identity.AgentID, '/') {
		return Validationf("agent_id %q contains '/'", m.Identity.AgentID)
	}
	seen := make(map[string]bool, len(m.Capabilities))
	for _, g := range m.Capabilities {
		if g.SkillID == "" {
			return Validationf("capability group %q has empty skill_id", g.Name)
		}
		if seen[g.SkillID] {
			return Validationf("duplicate skill_id %q in manifest for agent %s", g.SkillID, m.Identity.AgentID)
		}
		seen[g.SkillID] = true
	}
	return nil
}

// Fingerprint returns a short content hash of the identity and capabilities.
// Two manifests with the same fingerprint advertise the same actions, which
// makes it a safe memoization key for derived data like match tokens.
func (m *AgentManifest) Fingerprint() string {
	b, err := json.Marshal(struct {
		Identity     AgentIdentity     `json:"identity"`
		Capabilities []CapabilityGroup `json:"capabilities"`
	}{m.Identity, m.Capabilities})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// timeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic sorts over wire timestamps
// ("...:00Z" compares after "...:00.5Z"); a fixed width keeps string order
// equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Now returns the wire timestamp for the current instant. Nanosecond
// precision keeps updated_at strictly after created_at even when two
// transitions land within the same second.
func Now() string {
	return time.Now().UTC().Format(timeLayout)
}

// ParseTime parses a wire timestamp produced by Now or by a peer
// implementation stamping plain RFC3339.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}
