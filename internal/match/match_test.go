package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/protocol"
)

func manifestWith(agentID string, totalActions int, groups ...protocol.CapabilityGroup) *protocol.AgentManifest {
	m := &protocol.AgentManifest{
		Identity:     protocol.AgentIdentity{AgentID: agentID},
		Capabilities: groups,
	}
	m.TotalActions = totalActions
	if totalActions == 0 {
		m.TotalActions = m.CountActions()
	}
	return m
}

func TestRankPrefersTagHits(t *testing.T) {
	security := manifestWith("security-bot", 0, protocol.CapabilityGroup{
		SkillID: "audit",
		Actions: []protocol.Capability{{
			Name:        "review_code",
			Description: "Audit pull requests",
			Tags:        []string{"review", "security"},
		}},
	})
	prose := manifestWith("prose-bot", 0, protocol.CapabilityGroup{
		SkillID: "writing",
		Actions: []protocol.Capability{{
			Name:        "draft_post",
			Description: "Write marketing copy",
			Tags:        []string{"writing"},
		}},
	})

	matches := New().Rank([]*protocol.AgentManifest{prose, security}, "review my code for security issues")
	require.NotEmpty(t, matches)

	assert.Equal(t, "security-bot", matches[0].Manifest.Identity.AgentID)
	assert.Equal(t, "audit", matches[0].SkillID)
	assert.Equal(t, "review_code", matches[0].Action)
	assert.Greater(t, matches[0].Score, 0.0)
	assert.LessOrEqual(t, matches[0].Score, 1.0)

	// prose-bot shares no token with the task and must be excluded entirely.
	for _, m := range matches {
		assert.NotEqual(t, "prose-bot", m.Manifest.Identity.AgentID)
		assert.Greater(t, m.Score, 0.0)
	}
}

func TestRankNeverReturnsZeroScores(t *testing.T) {
	m := manifestWith("bot", 0, protocol.CapabilityGroup{
		SkillID: "s",
		Actions: []protocol.Capability{
			{Name: "translate", Tags: []string{"language"}},
			{Name: "summarize", Tags: []string{"summary"}},
		},
	})

	matches := New().Rank([]*protocol.AgentManifest{m}, "summarize this report")
	require.Len(t, matches, 1)
	assert.Equal(t, "summarize", matches[0].Action)
}

func TestRankTieBreaksByTotalActionsThenAgentID(t *testing.T) {
	group := protocol.CapabilityGroup{
		SkillID: "audit",
		Actions: []protocol.Capability{{Name: "review", Tags: []string{"security"}}},
	}
	established := manifestWith("zeta", 9, group)
	newcomer := manifestWith("alpha", 1, group)

	matches := New().Rank([]*protocol.AgentManifest{newcomer, established}, "security")
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "zeta", matches[0].Manifest.Identity.AgentID, "higher total_actions ranks first")

	peerA := manifestWith("alpha", 3, group)
	peerB := manifestWith("beta", 3, group)
	matches = New().Rank([]*protocol.AgentManifest{peerB, peerA}, "security")
	require.Len(t, matches, 2)
	assert.Equal(t, "alpha", matches[0].Manifest.Identity.AgentID, "lower agent_id ranks first on full tie")
}

func TestRankEmptyTask(t *testing.T) {
	m := manifestWith("bot", 0, protocol.CapabilityGroup{
		SkillID: "s",
		Actions: []protocol.Capability{{Name: "anything", Tags: []string{"misc"}}},
	})
	assert.Empty(t, New().Rank([]*protocol.AgentManifest{m}, "  "))
	assert.Empty(t, New().Rank(nil, "task"))
}

func TestRankReflectsReRegisteredCapabilities(t *testing.T) {
	matcher := New()
	m := manifestWith("bot", 0, protocol.CapabilityGroup{
		SkillID: "s",
		Actions: []protocol.Capability{{Name: "review", Tags: []string{"security"}}},
	})
	require.Len(t, matcher.Rank([]*protocol.AgentManifest{m}, "security"), 1)

	// A replaced manifest has a new fingerprint, so the memoized tokens for
	// the old content must not leak into the new ranking.
	replaced := manifestWith("bot", 0, protocol.CapabilityGroup{
		SkillID: "s",
		Actions: []protocol.Capability{{Name: "draft", Tags: []string{"writing"}}},
	})
	assert.Empty(t, matcher.Rank([]*protocol.AgentManifest{replaced}, "security"))
	require.Len(t, matcher.Rank([]*protocol.AgentManifest{replaced}, "writing"), 1)
}
