package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return "table"
	}
	return "json"
}

func Print(payload map[string]any, format string, quiet bool) error {
	if quiet {
		format = "quiet"
	}
	format = strings.TrimSpace(strings.ToLower(format))
	if format == "" {
		format = DefaultFormat()
	}

	switch format {
	case "json":
		return printJSON(payload)
	case "table":
		return printTable(payload)
	case "plain":
		return printPlain(payload)
	case "md":
		return printMarkdown(payload)
	case "quiet":
		return printQuiet(payload)
	default:
		return errors.New("invalid --format value")
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printTable(payload map[string]any) error {
	switch {
	case hasKey(payload, "agents"):
		fmt.Println("AGENT_ID\tNAME\tTYPE\tACTIONS\tACTIVE\tLAST_SEEN")
		for _, row := range toObjectSlice(payload["agents"]) {
			identity, _ := row["identity"].(map[string]any)
			fmt.Printf("%s\t%s\t%s\t%s\t%v\t%s\n",
				str(identity["agent_id"]), str(identity["name"]), str(identity["agent_type"]),
				str(row["total_actions"]), row["active"], str(row["last_seen"]))
		}
	case hasKey(payload, "matches"):
		fmt.Println("AGENT_ID\tSKILL\tACTION\tSCORE")
		for _, row := range toObjectSlice(payload["matches"]) {
			fmt.Printf("%s\t%s\t%s\t%s\n",
				str(row["agent_id"]), str(row["skill_id"]), str(row["action"]), str(row["score"]))
		}
	case hasKey(payload, "services"):
		fmt.Println("SERVICE_ID\tAGENT_ID\tNAME\tPRICE\tCREATED")
		for _, row := range toObjectSlice(payload["services"]) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				str(row["service_id"]), str(row["agent_id"]), str(row["name"]),
				str(row["price"]), str(row["created_at"]))
		}
	case hasKey(payload, "orders"):
		fmt.Println("ORDER_ID\tSERVICE_ID\tBUYER\tSTATUS\tUPDATED")
		for _, row := range toObjectSlice(payload["orders"]) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				str(row["order_id"]), str(row["service_id"]), str(row["buyer_agent_id"]),
				str(row["status"]), str(row["updated_at"]))
		}
	case hasKey(payload, "messages"):
		fmt.Println("MESSAGE_ID\tFROM\tSUBJECT\tREAD\tCREATED")
		for _, row := range toObjectSlice(payload["messages"]) {
			fmt.Printf("%s\t%s\t%s\t%v\t%s\n",
				str(row["message_id"]), str(row["from_agent"]), str(row["subject"]),
				row["read"], str(row["created_at"]))
		}
	case hasKey(payload, "entries"):
		fmt.Println("ENTRY_ID\tAUTHOR\tCATEGORY\tCONFIDENCE\tCONTENT")
		for _, row := range toObjectSlice(payload["entries"]) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				str(row["entry_id"]), str(row["author_agent_id"]), str(row["category"]),
				str(row["confidence"]), str(row["content"]))
		}
	default:
		return printJSON(payload)
	}
	return nil
}

func printPlain(payload map[string]any) error {
	switch {
	case hasKey(payload, "agents"):
		for _, row := range toObjectSlice(payload["agents"]) {
			identity, _ := row["identity"].(map[string]any)
			fmt.Printf("%s %s\n", str(identity["agent_id"]), str(identity["agent_type"]))
		}
	case hasKey(payload, "matches"):
		for _, row := range toObjectSlice(payload["matches"]) {
			fmt.Printf("%s %s/%s %s\n", str(row["agent_id"]), str(row["skill_id"]), str(row["action"]), str(row["score"]))
		}
	case hasKey(payload, "services"):
		for _, row := range toObjectSlice(payload["services"]) {
			fmt.Printf("%s %s %s\n", str(row["service_id"]), str(row["agent_id"]), str(row["name"]))
		}
	case hasKey(payload, "orders"):
		for _, row := range toObjectSlice(payload["orders"]) {
			fmt.Printf("%s %s %s\n", str(row["order_id"]), str(row["status"]), str(row["service_id"]))
		}
	case hasKey(payload, "messages"):
		for _, row := range toObjectSlice(payload["messages"]) {
			fmt.Printf("%s %s %s\n", str(row["message_id"]), str(row["from_agent"]), str(row["subject"]))
		}
	case hasKey(payload, "entries"):
		for _, row := range toObjectSlice(payload["entries"]) {
			fmt.Printf("%s %s %s\n", str(row["entry_id"]), str(row["category"]), str(row["content"]))
		}
	default:
		return printJSON(payload)
	}
	return nil
}

func printMarkdown(payload map[string]any) error {
	switch {
	case hasKey(payload, "agents"):
		for _, row := range toObjectSlice(payload["agents"]) {
			identity, _ := row["identity"].(map[string]any)
			fmt.Printf("- `%s` **%s** (%s, %s actions)\n",
				str(identity["agent_id"]), str(identity["name"]), str(identity["agent_type"]), str(row["total_actions"]))
		}
	case hasKey(payload, "matches"):
		for _, row := range toObjectSlice(payload["matches"]) {
			fmt.Printf("- `%s` %s/%s score %s\n",
				str(row["agent_id"]), str(row["skill_id"]), str(row["action"]), str(row["score"]))
		}
	case hasKey(payload, "services"):
		for _, row := range toObjectSlice(payload["services"]) {
			fmt.Printf("- `%s` **%s** by %s at %s\n",
				str(row["service_id"]), str(row["name"]), str(row["agent_id"]), str(row["price"]))
		}
	case hasKey(payload, "orders"):
		for _, row := range toObjectSlice(payload["orders"]) {
			fmt.Printf("- `%s` %s (service `%s`)\n",
				str(row["order_id"]), str(row["status"]), str(row["service_id"]))
		}
	case hasKey(payload, "messages"):
		for _, row := range toObjectSlice(payload["messages"]) {
			fmt.Printf("- `%s` **%s** from %s\n",
				str(row["message_id"]), str(row["subject"]), str(row["from_agent"]))
		}
	case hasKey(payload, "entries"):
		for _, row := range toObjectSlice(payload["entries"]) {
			fmt.Printf("- `%s` [%s] %s\n",
				str(row["entry_id"]), str(row["category"]), str(row["content"]))
		}
	default:
		return printJSON(payload)
	}
	return nil
}

func printQuiet(payload map[string]any) error {
	for _, key := range []string{"agents", "matches", "services", "orders", "messages", "entries"} {
		if !hasKey(payload, key) {
			continue
		}
		for _, row := range toObjectSlice(payload[key]) {
			switch key {
			case "agents":
				identity, _ := row["identity"].(map[string]any)
				fmt.Println(str(identity["agent_id"]))
			case "matches":
				fmt.Println(str(row["agent_id"]))
			case "services":
				fmt.Println(str(row["service_id"]))
			case "orders":
				fmt.Println(str(row["order_id"]))
			case "messages":
				fmt.Println(str(row["message_id"]))
			case "entries":
				fmt.Println(str(row["entry_id"]))
			}
		}
		return nil
	}
	for _, key := range []string{"service_id", "order_id", "message_id", "entry_id", "agent_id"} {
		if id, ok := payload[key]; ok {
			fmt.Println(str(id))
			return nil
		}
	}
	return printJSON(payload)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func toObjectSlice(v any) []map[string]any {
	in, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(in))
	for _, item := range in {
		if row, ok := item.(map[string]any); ok {
			out = append(out, row)
		}
	}
	return out
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
