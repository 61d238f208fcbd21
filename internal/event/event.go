package event

type Type string

const (
	TypeLedgerAppended Type = "ledger.appended"
	TypeLedgerRestored Type = "ledger.restored"
	TypeLedgerPurged   Type = "ledger.purged"
	TypeLedgerSwept    Type = "ledger.swept"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	Subject   string      `json:"subject,omitempty"` // Record id the event concerns
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
