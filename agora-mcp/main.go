// agora-mcp exposes the agent network facade as MCP tools over stdio so an
// LLM-driven agent can discover peers, trade services, and share knowledge
// without linking the module directly.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agora/internal/knowledge"
	"agora/internal/market"
	"agora/internal/network"
	"agora/internal/protocol"
	"agora/internal/store"
)

const serverVersion = "0.1.0-dev"

type discoverArgs struct {
	AgentType *string `json:"agent_type,omitempty"`
}

type findAgentArgs struct {
	Task string `json:"task"`
}

type listServicesArgs struct {
	Tags     []string `json:"tags,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

type createOrderArgs struct {
	ServiceID string         `json:"service_id"`
	Params    map[string]any `json:"params,omitempty"`
}

type orderArgs struct {
	OrderID string `json:"order_id"`
}

type sendMessageArgs struct {
	ToAgent string         `json:"to_agent"`
	Subject string         `json:"subject"`
	Body    map[string]any `json:"body,omitempty"`
}

type inboxArgs struct {
	UnreadOnly *bool `json:"unread_only,omitempty"`
}

type publishKnowledgeArgs struct {
	Content    string   `json:"content"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

type queryKnowledgeArgs struct {
	Tags          []string `json:"tags,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	Category      *string  `json:"category,omitempty"`
}

func main() {
	identity := protocol.AgentIdentity{
		AgentID:   strings.TrimSpace(os.Getenv("AGORA_AGENT_ID")),
		Name:      strings.TrimSpace(os.Getenv("AGORA_AGENT_NAME")),
		Ticker:    strings.TrimSpace(os.Getenv("AGORA_AGENT_TICKER")),
		AgentType: strings.TrimSpace(os.Getenv("AGORA_AGENT_TYPE")),
		Specialty: strings.TrimSpace(os.Getenv("AGORA_AGENT_SPECIALTY")),
	}
	if identity.AgentID == "" {
		log.Fatal("AGORA_AGENT_ID is required")
	}

	medium := strings.TrimSpace(os.Getenv("AGORA_MEDIUM"))
	path := strings.TrimSpace(os.Getenv("AGORA_DATA_DIR"))
	if medium == "sqlite" {
		path = strings.TrimSpace(os.Getenv("AGORA_DB"))
	}
	if path == "" {
		log.Fatal("AGORA_DATA_DIR (or AGORA_DB for the sqlite medium) is required")
	}

	st, closeStore, err := store.Open(medium, path)
	if err != nil {
		log.Fatalf("open shared medium: %v", err)
	}
	defer closeStore()

	net, err := network.New(identity, st)
	if err != nil {
		log.Fatalf("join network: %v", err)
	}

	server := newServer(net)
	log.Printf("agora-mcp serving agent %s over stdio", identity.AgentID)
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func newServer(net *network.Network) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "agora-mcp",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_discover_agents",
		Description: "List other agents on the network and their capabilities",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args discoverArgs) (*mcp.CallToolResult, any, error) {
		agentType := ""
		if args.AgentType != nil {
			agentType = strings.TrimSpace(*args.AgentType)
		}
		agents, err := net.DiscoverAgents(ctx, agentType)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(map[string]any{"agents": agents})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_find_agent",
		Description: "Rank peer capabilities against a free-text task description",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findAgentArgs) (*mcp.CallToolResult, any, error) {
		task := strings.TrimSpace(args.Task)
		if task == "" {
			return nil, nil, errors.New("task is required")
		}
		matches, err := net.FindAgentForTask(ctx, task)
		if err != nil {
			return nil, nil, err
		}
		rows := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, map[string]any{
				"agent_id": m.Manifest.Identity.AgentID,
				"skill_id": m.SkillID,
				"action":   m.Action,
				"score":    m.Score,
			})
		}
		return jsonToolResult(map[string]any{"matches": rows})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_list_services",
		Description: "Browse non-withdrawn marketplace listings",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listServicesArgs) (*mcp.CallToolResult, any, error) {
		services, err := net.ListServices(ctx, market.ListServicesParams{
			Tags:     args.Tags,
			MaxPrice: args.MaxPrice,
		})
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(map[string]any{"services": services})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_create_order",
		Description: "Place an order against a marketplace listing",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args createOrderArgs) (*mcp.CallToolResult, any, error) {
		serviceID := strings.TrimSpace(args.ServiceID)
		if serviceID == "" {
			return nil, nil, errors.New("service_id is required")
		}
		order, err := net.CreateOrder(ctx, serviceID, args.Params)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(order)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_get_order",
		Description: "Fetch an order and its current status",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args orderArgs) (*mcp.CallToolResult, any, error) {
		orderID := strings.TrimSpace(args.OrderID)
		if orderID == "" {
			return nil, nil, errors.New("order_id is required")
		}
		order, err := net.Order(ctx, orderID)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(order)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_send_message",
		Description: "Send a direct message to another agent",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sendMessageArgs) (*mcp.CallToolResult, any, error) {
		to := strings.TrimSpace(args.ToAgent)
		if to == "" {
			return nil, nil, errors.New("to_agent is required")
		}
		msg, err := net.SendMessage(ctx, to, args.Subject, args.Body)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(msg)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_inbox",
		Description: "List messages addressed to this agent, oldest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args inboxArgs) (*mcp.CallToolResult, any, error) {
		unreadOnly := args.UnreadOnly != nil && *args.UnreadOnly
		messages, err := net.Inbox(ctx, unreadOnly)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(map[string]any{"messages": messages})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_publish_knowledge",
		Description: "Append a tagged, confidence-scored fact to the shared knowledge base",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args publishKnowledgeArgs) (*mcp.CallToolResult, any, error) {
		entry, err := net.PublishKnowledge(ctx, &protocol.KnowledgeEntry{
			Content:    args.Content,
			Category:   args.Category,
			Confidence: args.Confidence,
			Tags:       args.Tags,
		})
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(entry)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agora_query_knowledge",
		Description: "Query the shared knowledge base by tags, category, and confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryKnowledgeArgs) (*mcp.CallToolResult, any, error) {
		p := knowledge.QueryParams{Tags: args.Tags}
		if args.MinConfidence != nil {
			p.MinConfidence = *args.MinConfidence
		}
		if args.Category != nil {
			p.Category = strings.TrimSpace(*args.Category)
		}
		entries, err := net.QueryKnowledge(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(map[string]any{"entries": entries})
	})

	return server
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	text, err := toJSONText(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}
