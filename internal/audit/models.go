package audit

import "time"

// Action names one audited business event.
type Action string

const (
	ActionApprovalRequested Action = "approval_requested"
	ActionApprovalResponded Action = "approval_responded"
	ActionApprovalRejected  Action = "approval_rejected"
	ActionSchemaCreated     Action = "schema_created"
	ActionDIDCreated        Action = "did_created"
	ActionCredentialIssued  Action = "credential_issued"
	ActionLoginSucceeded    Action = "login_succeeded"
	ActionLoginFailed       Action = "login_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Address is the wallet address that performed the action.
	Address string `json:"address"`
	// Peer is the counterparty of messaging actions.
	Peer           string `json:"peer,omitempty"`
	Subject        string `json:"subject,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	DataType       string `json:"data_type,omitempty"`
	Reason         string `json:"reason,omitempty"`
	// RequestID is the HTTP correlation id.
	RequestID string `json:"request_id,omitempty"`
}
