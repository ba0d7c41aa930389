package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/knowledge"
	"agora/internal/market"
	"agora/internal/protocol"
	"agora/internal/store"
)

func joinTestNetwork(t *testing.T, st store.Store, agentID, agentType string) *Network {
	t.Helper()
	n, err := New(protocol.AgentIdentity{
		AgentID:   agentID,
		Name:      agentID,
		AgentType: agentType,
	}, st)
	require.NoError(t, err)
	return n
}

func TestNewValidation(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = New(protocol.AgentIdentity{}, st)
	assert.ErrorIs(t, err, protocol.ErrValidation)

	_, err = New(protocol.AgentIdentity{AgentID: "a/b"}, st)
	assert.ErrorIs(t, err, protocol.ErrValidation)

	_, err = New(protocol.AgentIdentity{AgentID: "alice"}, nil)
	assert.ErrorIs(t, err, protocol.ErrValidation)
}

func TestDiscoveryExcludesSelf(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	alice := joinTestNetwork(t, st, "alice", "coder")
	bob := joinTestNetwork(t, st, "bob", "writer")

	_, err = alice.Register(ctx, nil)
	require.NoError(t, err)
	_, err = bob.Register(ctx, nil)
	require.NoError(t, err)

	peers, err := alice.DiscoverAgents(ctx, "")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "bob", peers[0].Identity.AgentID)

	writers, err := alice.DiscoverAgents(ctx, "writer")
	require.NoError(t, err)
	require.Len(t, writers, 1)

	coders, err := alice.DiscoverAgents(ctx, "coder")
	require.NoError(t, err)
	assert.Empty(t, coders, "own type filtered to peers only")
}

func TestFindAgentForTask(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	alice := joinTestNetwork(t, st, "alice", "coder")
	bob := joinTestNetwork(t, st, "bob", "reviewer")
	carol := joinTestNetwork(t, st, "carol", "writer")

	_, err = alice.Register(ctx, nil)
	require.NoError(t, err)
	_, err = bob.Register(ctx, []protocol.CapabilityGroup{{
		SkillID: "audit",
		Actions: []protocol.Capability{{
			Name:        "review_code",
			Description: "Audit code changes",
			Tags:        []string{"review", "security"},
		}},
	}})
	require.NoError(t, err)
	_, err = carol.Register(ctx, []protocol.CapabilityGroup{{
		SkillID: "prose",
		Actions: []protocol.Capability{{
			Name:        "draft_post",
			Description: "Write blog posts",
			Tags:        []string{"writing"},
		}},
	}})
	require.NoError(t, err)

	matches, err := alice.FindAgentForTask(ctx, "review this change for security problems")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "bob", matches[0].Manifest.Identity.AgentID)
	for _, m := range matches {
		assert.NotEqual(t, "alice", m.Manifest.Identity.AgentID)
		assert.Greater(t, m.Score, 0.0)
	}
}

func TestOrderLifecycleAcrossAgents(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	seller := joinTestNetwork(t, st, "seller", "coder")
	buyer := joinTestNetwork(t, st, "buyer", "manager")

	listing, err := seller.PublishService(ctx, &protocol.ServiceListing{
		Name:        "Code Review",
		Description: "Reviews a pull request",
		Price:       0.25,
		Tags:        []string{"review"},
	})
	require.NoError(t, err)
	assert.Equal(t, "seller", listing.AgentID, "listing ownership forced to publisher")

	order, err := buyer.CreateOrder(ctx, listing.ServiceID, protocol.Params{"pr": "42"})
	require.NoError(t, err)
	assert.Equal(t, protocol.OrderPending, order.Status)
	assert.Equal(t, "buyer", order.BuyerAgentID)

	// Only the listing owner can work the order.
	_, err = buyer.AcceptOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, protocol.ErrPermission)

	accepted, err := seller.AcceptOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, protocol.OrderAccepted, accepted.Status)

	fulfilled, err := seller.FulfillOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, protocol.OrderFulfilled, fulfilled.Status)

	created, err := protocol.ParseTime(fulfilled.CreatedAt)
	require.NoError(t, err)
	updated, err := protocol.ParseTime(fulfilled.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, updated.After(created), "updated_at must advance past created_at")

	placed, err := buyer.Orders(ctx, true, "")
	require.NoError(t, err)
	require.Len(t, placed, 1)

	received, err := seller.Orders(ctx, false, protocol.OrderFulfilled)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, order.OrderID, received[0].OrderID)
}

func TestWithdrawnServiceLeavesMarket(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	seller := joinTestNetwork(t, st, "seller", "coder")
	buyer := joinTestNetwork(t, st, "buyer", "manager")

	listing, err := seller.PublishService(ctx, &protocol.ServiceListing{Name: "Summaries", Price: 0.10})
	require.NoError(t, err)

	_, err = buyer.WithdrawService(ctx, listing.ServiceID)
	assert.ErrorIs(t, err, protocol.ErrPermission)

	_, err = seller.WithdrawService(ctx, listing.ServiceID)
	require.NoError(t, err)

	visible, err := buyer.ListServices(ctx, market.ListServicesParams{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	_, err = buyer.CreateOrder(ctx, listing.ServiceID, nil)
	assert.ErrorIs(t, err, protocol.ErrNotFound)
}

func TestMessagingBroadcastAndReply(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	alice := joinTestNetwork(t, st, "alice", "coder")
	bob := joinTestNetwork(t, st, "bob", "writer")
	carol := joinTestNetwork(t, st, "carol", "ops")

	for _, n := range []*Network{alice, bob, carol} {
		_, err := n.Register(ctx, nil)
		require.NoError(t, err)
	}

	sent, err := alice.Broadcast(ctx, "standup", protocol.Params{"note": "sync at 10"})
	require.NoError(t, err)
	require.Len(t, sent, 2, "one message per peer, none to self")

	bobInbox, err := bob.Inbox(ctx, false)
	require.NoError(t, err)
	require.Len(t, bobInbox, 1)
	assert.Equal(t, "alice", bobInbox[0].FromAgent)
	assert.Equal(t, "standup", bobInbox[0].Subject)

	reply, err := bob.Reply(ctx, bobInbox[0], protocol.Params{"note": "ack"})
	require.NoError(t, err)
	assert.Equal(t, "alice", reply.ToAgent)
	assert.Equal(t, "Re: standup", reply.Subject)

	aliceInbox, err := alice.Inbox(ctx, true)
	require.NoError(t, err)
	require.Len(t, aliceInbox, 1)

	_, err = alice.MarkRead(ctx, aliceInbox[0].MessageID)
	require.NoError(t, err)
	unread, err := alice.Inbox(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestKnowledgeAuthorshipForced(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	alice := joinTestNetwork(t, st, "alice", "coder")

	entry, err := alice.PublishKnowledge(ctx, &protocol.KnowledgeEntry{
		AuthorAgentID: "impostor",
		Content:       "prices dip on weekends",
		Category:      "market",
		Confidence:    0.8,
		Tags:          []string{"pricing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.AuthorAgentID)

	hits, err := alice.QueryKnowledge(ctx, knowledge.QueryParams{Tags: []string{"pricing"}, MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	seller := joinTestNetwork(t, st, "seller", "coder")
	buyer := joinTestNetwork(t, st, "buyer", "manager")

	_, err = seller.Register(ctx, nil)
	require.NoError(t, err)
	_, err = buyer.Register(ctx, nil)
	require.NoError(t, err)

	listing, err := seller.PublishService(ctx, &protocol.ServiceListing{Name: "Review", Price: 0.10})
	require.NoError(t, err)
	_, err = buyer.CreateOrder(ctx, listing.ServiceID, nil)
	require.NoError(t, err)
	_, err = buyer.SendMessage(ctx, "seller", "question", protocol.Params{"q": "eta?"})
	require.NoError(t, err)

	stats, err := seller.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seller", stats.AgentID)
	assert.Equal(t, 1, stats.ServicesPublished)
	assert.Equal(t, 0, stats.OrdersPlaced)
	assert.Equal(t, 1, stats.OrdersReceived)
	assert.Equal(t, 1, stats.UnreadMessages)

	buyerStats, err := buyer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, buyerStats.OrdersPlaced)
	assert.Equal(t, 0, buyerStats.OrdersReceived)

	// Withdrawing a listing does not erase its publication from the counters.
	_, err = seller.WithdrawService(ctx, listing.ServiceID)
	require.NoError(t, err)
	stats, err = seller.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ServicesPublished)
}
