package protocol

// Message is a direct message between two agents, delivered by appending to
// the recipient's inbox in the shared medium. Delivery is at-least-once; the
// core does not deduplicate retried sends. The read flag is mutated only by
// the recipient.
type Message struct {
	MessageID string `json:"message_id"`
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Subject   string `json:"subject"`
	Body      Params `json:"body"`
	CreatedAt string `json:"created_at"`
	Read      bool   `json:"read"`
}
