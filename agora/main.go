package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"agora/internal/cli/config"
	"agora/internal/cli/output"
	"agora/internal/cli/skillfile"
	"agora/internal/knowledge"
	"agora/internal/market"
	"agora/internal/network"
	"agora/internal/protocol"
	"agora/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "join":
		return cmdJoin(args[1:])
	case "leave":
		return cmdLeave()
	case "whoami":
		return cmdWhoAmI()
	case "register":
		return cmdRegister(args[1:])
	case "heartbeat":
		return cmdHeartbeat()
	case "agents":
		return cmdAgents(args[1:])
	case "find":
		return cmdFind(args[1:])
	case "services":
		return cmdServices(args[1:])
	case "orders":
		return cmdOrders(args[1:])
	case "send":
		return cmdSend(args[1:])
	case "inbox":
		return cmdInbox(args[1:])
	case "read":
		return cmdRead(args[1:])
	case "knowledge":
		return cmdKnowledge(args[1:])
	case "stats":
		return cmdStats(args[1:])
	default:
		return usage()
	}
}

func usage() error {
	fmt.Fprint(os.Stderr, `usage: agora <command> [args]

  join        configure identity and shared medium
  leave       remove the local configuration
  whoami      show the configured identity
  register    publish this agent's capability manifest
  heartbeat   refresh liveness without re-registering
  agents      list other agents on the network
  find        rank peer capabilities against a task description
  services    list | publish | withdraw marketplace listings
  orders      create | get | list | accept | reject | fulfill | cancel
  send        send a direct message to another agent
  inbox       list received messages
  read        mark a received message as read
  knowledge   publish | query the shared knowledge base
  stats       show this agent's network activity
`)
	return errors.New("unknown command")
}

func cmdJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	agentID := fs.String("agent-id", "", "Globally unique agent id")
	name := fs.String("name", "", "Display name")
	ticker := fs.String("ticker", "", "Ticker symbol")
	agentType := fs.String("type", "general", "Agent type")
	specialty := fs.String("specialty", "", "Specialty")
	medium := fs.String("medium", "file", "Shared medium: file or sqlite")
	dataDir := fs.String("data-dir", "", "Shared directory (file medium)")
	dbPath := fs.String("db", "", "Shared database path (sqlite medium)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*agentID) == "" {
		return errors.New("--agent-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Identity = protocol.AgentIdentity{
		AgentID:   strings.TrimSpace(*agentID),
		Name:      strings.TrimSpace(*name),
		Ticker:    strings.TrimSpace(*ticker),
		AgentType: strings.TrimSpace(*agentType),
		Specialty: strings.TrimSpace(*specialty),
	}
	cfg.Medium = strings.TrimSpace(*medium)
	cfg.DataDir = strings.TrimSpace(*dataDir)
	cfg.DBPath = strings.TrimSpace(*dbPath)
	if !cfg.Joined() {
		return errors.New("a shared medium path is required (--data-dir or --db)")
	}

	// Probe the medium before committing the config.
	_, closeStore, err := store.Open(cfg.Medium, cfg.StorePath())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("joined as %s via %s medium\n", cfg.Identity.AgentID, cfg.Medium)
	return nil
}

func cmdLeave() error {
	p, err := config.Path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Println("left the network (shared data is untouched)")
	return nil
}

func cmdWhoAmI() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Joined() {
		return errors.New("not joined (run: agora join)")
	}
	b, err := json.MarshalIndent(cfg.Identity, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	skillsPath := fs.String("skills", "", "Path to skills YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var groups []protocol.CapabilityGroup
	if *skillsPath != "" {
		var err error
		groups, err = skillfile.Load(*skillsPath)
		if err != nil {
			return err
		}
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	manifest, err := net.Register(context.Background(), groups)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s with %d actions\n", manifest.Identity.AgentID, manifest.TotalActions)
	return nil
}

func cmdHeartbeat() error {
	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()
	if err := net.Heartbeat(context.Background()); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func cmdAgents(args []string) error {
	fs := flag.NewFlagSet("agents", flag.ContinueOnError)
	agentType := fs.String("type", "", "Filter by agent type")
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	agents, err := net.DiscoverAgents(context.Background(), *agentType)
	if err != nil {
		return err
	}
	return output.Print(payload("agents", agents), *format, *quiet)
}

func cmdFind(args []string) error {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	task := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if task == "" {
		return errors.New("usage: agora find <task description>")
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	matches, err := net.FindAgentForTask(context.Background(), task)
	if err != nil {
		return err
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
	return output.Print(payload("matches", rows), *format, *quiet)
}

func cmdServices(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: agora services <list|publish|withdraw>")
	}
	switch args[0] {
	case "list":
		return cmdServicesList(args[1:])
	case "publish":
		return cmdServicesPublish(args[1:])
	case "withdraw":
		return cmdServicesWithdraw(args[1:])
	default:
		return errors.New("usage: agora services <list|publish|withdraw>")
	}
}

func cmdServicesList(args []string) error {
	fs := flag.NewFlagSet("services list", flag.ContinueOnError)
	tags := fs.String("tags", "", "Comma-separated tag filter (any match)")
	maxPrice := fs.String("max-price", "", "Maximum price")
	mine := fs.Bool("mine", false, "Only this agent's listings")
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	p := market.ListServicesParams{Tags: splitTags(*tags)}
	if *mine {
		p.AgentID = net.Identity().AgentID
	}
	if strings.TrimSpace(*maxPrice) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(*maxPrice), 64)
		if err != nil {
			return fmt.Errorf("invalid --max-price: %w", err)
		}
		p.MaxPrice = &v
	}

	services, err := net.ListServices(context.Background(), p)
	if err != nil {
		return err
	}
	return output.Print(payload("services", services), *format, *quiet)
}

func cmdServicesPublish(args []string) error {
	fs := flag.NewFlagSet("services publish", flag.ContinueOnError)
	name := fs.String("name", "", "Service name")
	description := fs.String("description", "", "Service description")
	price := fs.Float64("price", 0, "Service price")
	tags := fs.String("tags", "", "Comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	listing, err := net.PublishService(context.Background(), &protocol.ServiceListing{
		Name:        strings.TrimSpace(*name),
		Description: strings.TrimSpace(*description),
		Price:       *price,
		Tags:        splitTags(*tags),
	})
	if err != nil {
		return err
	}
	fmt.Println(listing.ServiceID)
	return nil
}

func cmdServicesWithdraw(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: agora services withdraw <service-id>")
	}
	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()
	if _, err := net.WithdrawService(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("withdrawn")
	return nil
}

func cmdOrders(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: agora orders <create|get|list|accept|reject|fulfill|cancel>")
	}
	switch args[0] {
	case "create":
		return cmdOrdersCreate(args[1:])
	case "get":
		return cmdOrdersGet(args[1:])
	case "list":
		return cmdOrdersList(args[1:])
	case "accept", "reject", "fulfill", "cancel":
		return cmdOrdersTransition(args[0], args[1:])
	default:
		return errors.New("usage: agora orders <create|get|list|accept|reject|fulfill|cancel>")
	}
}

func cmdOrdersCreate(args []string) error {
	fs := flag.NewFlagSet("orders create", flag.ContinueOnError)
	var params paramsFlag
	fs.Var(&params, "p", "Order parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: agora orders create <service-id> [-p key=value]...")
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	order, err := net.CreateOrder(context.Background(), fs.Arg(0), params.values)
	if err != nil {
		return err
	}
	fmt.Println(order.OrderID)
	return nil
}

func cmdOrdersGet(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: agora orders get <order-id>")
	}
	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()
	order, err := net.Order(context.Background(), args[0])
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func cmdOrdersList(args []string) error {
	fs := flag.NewFlagSet("orders list", flag.ContinueOnError)
	asSeller := fs.Bool("as-seller", false, "Orders against this agent's listings instead of orders it placed")
	status := fs.String("status", "", "Filter by status")
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	orders, err := net.Orders(context.Background(), !*asSeller, protocol.OrderStatus(*status))
	if err != nil {
		return err
	}
	return output.Print(payload("orders", orders), *format, *quiet)
}

func cmdOrdersTransition(verb string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: agora orders %s <order-id>", verb)
	}
	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	var order *protocol.Order
	switch verb {
	case "accept":
		order, err = net.AcceptOrder(ctx, args[0])
	case "reject":
		order, err = net.RejectOrder(ctx, args[0])
	case "fulfill":
		order, err = net.FulfillOrder(ctx, args[0])
	case "cancel":
		order, err = net.CancelOrder(ctx, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", order.OrderID, order.Status)
	return nil
}

func cmdSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	subject := fs.String("subject", "", "Message subject")
	var body paramsFlag
	fs.Var(&body, "b", "Body field key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: agora send <agent-id> --subject s [-b key=value]...")
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	msg, err := net.SendMessage(context.Background(), fs.Arg(0), *subject, body.values)
	if err != nil {
		return err
	}
	fmt.Println(msg.MessageID)
	return nil
}

func cmdInbox(args []string) error {
	fs := flag.NewFlagSet("inbox", flag.ContinueOnError)
	unread := fs.Bool("unread", false, "Only unread messages")
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	messages, err := net.Inbox(context.Background(), *unread)
	if err != nil {
		return err
	}
	return output.Print(payload("messages", messages), *format, *quiet)
}

func cmdRead(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: agora read <message-id>")
	}
	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()
	if _, err := net.MarkRead(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("read")
	return nil
}

func cmdKnowledge(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: agora knowledge <publish|query>")
	}
	switch args[0] {
	case "publish":
		return cmdKnowledgePublish(args[1:])
	case "query":
		return cmdKnowledgeQuery(args[1:])
	default:
		return errors.New("usage: agora knowledge <publish|query>")
	}
}

func cmdKnowledgePublish(args []string) error {
	fs := flag.NewFlagSet("knowledge publish", flag.ContinueOnError)
	content := fs.String("content", "", "Entry content")
	category := fs.String("category", "", "Entry category")
	confidence := fs.Float64("confidence", 0.5, "Confidence in [0,1]")
	tags := fs.String("tags", "", "Comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	entry, err := net.PublishKnowledge(context.Background(), &protocol.KnowledgeEntry{
		Content:    strings.TrimSpace(*content),
		Category:   strings.TrimSpace(*category),
		Confidence: *confidence,
		Tags:       splitTags(*tags),
	})
	if err != nil {
		return err
	}
	fmt.Println(entry.EntryID)
	return nil
}

func cmdKnowledgeQuery(args []string) error {
	fs := flag.NewFlagSet("knowledge query", flag.ContinueOnError)
	tags := fs.String("tags", "", "Comma-separated tag filter (any match)")
	minConfidence := fs.Float64("min-confidence", 0, "Minimum confidence")
	category := fs.String("category", "", "Filter by category")
	format := fs.String("format", "", "Output format: table, json, plain, md")
	quiet := fs.Bool("quiet", false, "Only print ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := net.QueryKnowledge(context.Background(), knowledge.QueryParams{
		Tags:          splitTags(*tags),
		MinConfidence: *minConfidence,
		Category:      strings.TrimSpace(*category),
	})
	if err != nil {
		return err
	}
	return output.Print(payload("entries", entries), *format, *quiet)
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	net, closeStore, err := openNetwork()
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := net.Stats(context.Background())
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func openNetwork() (*network.Network, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Joined() {
		return nil, nil, errors.New("not joined (run: agora join)")
	}
	st, closeStore, err := store.Open(cfg.Medium, cfg.StorePath())
	if err != nil {
		return nil, nil, err
	}

	var opts []network.Option
	if raw := cfg.Preferences["liveness_window"]; raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("invalid liveness_window preference: %w", err)
		}
		opts = append(opts, network.WithLivenessWindow(window))
	}

	net, err := network.New(cfg.Identity, st, opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return net, closeStore, nil
}

// payload round-trips a typed value through JSON so the output package can
// render it the same way regardless of source.
func payload(key string, v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{key: []any{}}
	}
	var rows any
	if err := json.Unmarshal(b, &rows); err != nil {
		return map[string]any{key: []any{}}
	}
	return map[string]any{key: rows}
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// paramsFlag collects repeated key=value pairs into an opaque payload.
type paramsFlag struct {
	values protocol.Params
}

func (f *paramsFlag) String() string {
	if len(f.values) == 0 {
		return ""
	}
	b, _ := json.Marshal(f.values)
	return string(b)
}

func (f *paramsFlag) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	if f.values == nil {
		f.values = protocol.Params{}
	}
	f.values[strings.TrimSpace(key)] = value
	return nil
}
