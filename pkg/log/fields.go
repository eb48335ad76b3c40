package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldParticipantID = "participant_id"
	FieldRole          = "role"

	// Chat
	FieldConversationID = "conversation_id"
	FieldChannelID      = "channel_id"
	FieldSequence       = "sequence"
	FieldNonce          = "nonce"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
