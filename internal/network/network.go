// Package network is the single entry point an agent process uses to join
// the shared network: register its manifest, discover peers, trade services,
// exchange messages, and share knowledge. The facade holds the owning
// identity and the shared-storage handle for its lifetime; every method is a
// unit of work against the shared medium, and no cross-call in-memory state
// is authoritative.
package network

import (
	"context"
	"strings"
	"time"

	"agora/internal/knowledge"
	"agora/internal/mailbox"
	"agora/internal/market"
	"agora/internal/match"
	"agora/internal/protocol"
	"agora/internal/registry"
	"agora/internal/store"
)

// Network coordinates one agent's view of the shared medium.
type Network struct {
	identity protocol.AgentIdentity
	store    store.Store
	window   time.Duration
	matcher  *match.Matcher
}

// Option configures a Network.
type Option func(*Network)

// WithLivenessWindow overrides the window after which a silent agent is
// reported inactive.
func WithLivenessWindow(d time.Duration) Option {
	return func(n *Network) {
		n.window = d
	}
}

// New returns a facade for the given identity over the given shared medium.
func New(identity protocol.AgentIdentity, st store.Store, opts ...Option) (*Network, error) {
	if identity.AgentID == "" {
		return nil, protocol.Validationf("identity has empty agent_id")
	}
	if strings.ContainsRune(identity.AgentID, '/') {
		return nil, protocol.Validationf("identity agent_id %q contains '/'", identity.AgentID)
	}
	if st == nil {
		return nil, protocol.Validationf("nil store")
	}
	n := &Network{
		identity: identity,
		store:    st,
		window:   registry.DefaultLivenessWindow,
		matcher:  match.New(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Identity returns the owning identity.
func (n *Network) Identity() protocol.AgentIdentity { return n.identity }

// Register publishes this agent's manifest, replacing any prior one.
func (n *Network) Register(ctx context.Context, capabilities []protocol.CapabilityGroup) (*protocol.AgentManifest, error) {
	return registry.Register(ctx, n.store, &protocol.AgentManifest{
		Identity:     n.identity,
		Capabilities: capabilities,
	})
}

// Heartbeat refreshes this agent's last_seen without re-sending capabilities.
func (n *Network) Heartbeat(ctx context.Context) error {
	return registry.Heartbeat(ctx, n.store, n.identity.AgentID)
}

// Agent returns the manifest of one agent, own or peer.
func (n *Network) Agent(ctx context.Context, agentID string) (*protocol.AgentManifest, error) {
	return registry.Get(ctx, n.store, agentID, n.window)
}

// DiscoverAgents returns the manifests of all other agents, optionally
// filtered by agent type.
func (n *Network) DiscoverAgents(ctx context.Context, agentType string) ([]*protocol.AgentManifest, error) {
	all, err := registry.List(ctx, n.store, registry.ListParams{AgentType: agentType}, n.window)
	if err != nil {
		return nil, err
	}
	return n.withoutSelf(all), nil
}

// FindAgentForTask ranks every capability of every active peer against the
// task text. Candidates with zero lexical overlap are excluded.
func (n *Network) FindAgentForTask(ctx context.Context, task string) ([]match.Match, error) {
	peers, err := registry.List(ctx, n.store, registry.ListParams{ActiveOnly: true}, n.window)
	if err != nil {
		return nil, err
	}
	return n.matcher.Rank(n.withoutSelf(peers), task), nil
}

// PublishService publishes a listing owned by this agent.
func (n *Network) PublishService(ctx context.Context, listing *protocol.ServiceListing) (*protocol.ServiceListing, error) {
	if listing == nil {
		return nil, protocol.Validationf("nil listing")
	}
	owned := *listing
	owned.AgentID = n.identity.AgentID
	return market.Publish(ctx, n.store, &owned)
}

// ListServices browses non-withdrawn listings.
func (n *Network) ListServices(ctx context.Context, p market.ListServicesParams) ([]*protocol.ServiceListing, error) {
	return market.ListServices(ctx, n.store, p)
}

// WithdrawService hides one of this agent's own listings from the market.
func (n *Network) WithdrawService(ctx context.Context, serviceID string) (*protocol.ServiceListing, error) {
	return market.Withdraw(ctx, n.store, n.identity.AgentID, serviceID)
}

// CreateOrder places an order, as buyer, against a listing.
func (n *Network) CreateOrder(ctx context.Context, serviceID string, params protocol.Params) (*protocol.Order, error) {
	return market.CreateOrder(ctx, n.store, n.identity.AgentID, serviceID, params)
}

// Order returns one order by id.
func (n *Network) Order(ctx context.Context, orderID string) (*protocol.Order, error) {
	return market.GetOrder(ctx, n.store, orderID)
}

// AcceptOrder accepts a pending order against one of this agent's listings.
func (n *Network) AcceptOrder(ctx context.Context, orderID string) (*protocol.Order, error) {
	return market.AcceptOrder(ctx, n.store, n.identity.AgentID, orderID)
}

// RejectOrder rejects a pending order against one of this agent's listings.
func (n *Network) RejectOrder(ctx context.Context, orderID string) (*protocol.Order, error) {
	return market.RejectOrder(ctx, n.store, n.identity.AgentID, orderID)
}

// FulfillOrder marks an accepted order against one of this agent's listings
// as fulfilled.
func (n *Network) FulfillOrder(ctx context.Context, orderID string) (*protocol.Order, error) {
	return market.FulfillOrder(ctx, n.store, n.identity.AgentID, orderID)
}

// CancelOrder cancels, as buyer, a pending or accepted order.
func (n *Network) CancelOrder(ctx context.Context, orderID string) (*protocol.Order, error) {
	return market.CancelOrder(ctx, n.store, n.identity.AgentID, orderID)
}

// Orders lists orders involving this agent. As buyer it returns orders this
// agent placed; otherwise orders placed against this agent's listings.
func (n *Network) Orders(ctx context.Context, asBuyer bool, status protocol.OrderStatus) ([]*protocol.Order, error) {
	p := market.ListOrdersParams{Status: status}
	if asBuyer {
		p.BuyerAgentID = n.identity.AgentID
	} else {
		p.SellerAgentID = n.identity.AgentID
	}
	return market.ListOrders(ctx, n.store, p)
}

// SendMessage delivers a direct message from this agent.
func (n *Network) SendMessage(ctx context.Context, toAgent, subject string, body protocol.Params) (*protocol.Message, error) {
	return mailbox.Send(ctx, n.store, &protocol.Message{
		FromAgent: n.identity.AgentID,
		ToAgent:   toAgent,
		Subject:   subject,
		Body:      body,
	})
}

// Broadcast sends one message per known peer. Each delivery is an
// independent single-record append; a mid-way failure leaves earlier
// deliveries in place.
func (n *Network) Broadcast(ctx context.Context, subject string, body protocol.Params) ([]*protocol.Message, error) {
	peers, err := n.DiscoverAgents(ctx, "")
	if err != nil {
		return nil, err
	}
	sent := make([]*protocol.Message, 0, len(peers))
	for _, peer := range peers {
		msg, err := n.SendMessage(ctx, peer.Identity.AgentID, subject, body)
		if err != nil {
			return sent, err
		}
		sent = append(sent, msg)
	}
	return sent, nil
}

// Reply sends a response back to the sender of a received message.
func (n *Network) Reply(ctx context.Context, original *protocol.Message, body protocol.Params) (*protocol.Message, error) {
	if original == nil {
		return nil, protocol.Validationf("nil original message")
	}
	return n.SendMessage(ctx, original.FromAgent, "Re: "+original.Subject, body)
}

// Inbox returns messages addressed to this agent, oldest first.
func (n *Network) Inbox(ctx context.Context, unreadOnly bool) ([]*protocol.Message, error) {
	return mailbox.Inbox(ctx, n.store, n.identity.AgentID, unreadOnly)
}

// MarkRead flags one of this agent's received messages as read.
func (n *Network) MarkRead(ctx context.Context, messageID string) (*protocol.Message, error) {
	return mailbox.MarkRead(ctx, n.store, n.identity.AgentID, messageID)
}

// PublishKnowledge appends an entry authored by this agent.
func (n *Network) PublishKnowledge(ctx context.Context, entry *protocol.KnowledgeEntry) (*protocol.KnowledgeEntry, error) {
	if entry == nil {
		return nil, protocol.Validationf("nil entry")
	}
	authored := *entry
	authored.AuthorAgentID = n.identity.AgentID
	return knowledge.Publish(ctx, n.store, &authored)
}

// QueryKnowledge returns matching entries, newest first.
func (n *Network) QueryKnowledge(ctx context.Context, p knowledge.QueryParams) ([]*protocol.KnowledgeEntry, error) {
	return knowledge.Query(ctx, n.store, p)
}

// Stats summarizes this agent's network activity.
type Stats struct {
	AgentID           string `json:"agent_id"`
	ServicesPublished int    `json:"services_published"`
	OrdersPlaced      int    `json:"orders_placed"`
	OrdersReceived    int    `json:"orders_received"`
	UnreadMessages    int    `json:"unread_messages"`
}

// Stats gathers activity counters for this agent from the shared medium.
func (n *Network) Stats(ctx context.Context) (*Stats, error) {
	services, err := market.ListServices(ctx, n.store, market.ListServicesParams{
		AgentID:          n.identity.AgentID,
		IncludeWithdrawn: true,
	})
	if err != nil {
		return nil, err
	}
	placed, err := market.ListOrders(ctx, n.store, market.ListOrdersParams{BuyerAgentID: n.identity.AgentID})
	if err != nil {
		return nil, err
	}
	received, err := market.ListOrders(ctx, n.store, market.ListOrdersParams{SellerAgentID: n.identity.AgentID})
	if err != nil {
		return nil, err
	}
	unread, err := mailbox.Inbox(ctx, n.store, n.identity.AgentID, true)
	if err != nil {
		return nil, err
	}
	return &Stats{
		AgentID:           n.identity.AgentID,
		ServicesPublished: len(services),
		OrdersPlaced:      len(placed),
		OrdersReceived:    len(received),
		UnreadMessages:    len(unread),
	}, nil
}

func (n *Network) withoutSelf(manifests []*protocol.AgentManifest) []*protocol.AgentManifest {
	out := manifests[:0]
	for _, m := range manifests {
		if m.Identity.AgentID == n.identity.AgentID {
			continue
		}
		out = append(out, m)
	}
	return out
}
