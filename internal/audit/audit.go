package audit

import (
	"context"

	"github.com/Zwubman/software-company-sub002/pkg/log"
)

// Audit actions for the chat service.
const (
	ActionAuth       = "chat.auth"
	ActionAuthFailed = "chat.auth_failed"
	ActionJoin       = "chat.join"
	ActionSubmit     = "chat.submit"
	ActionRead       = "chat.read"
	ActionReplay     = "chat.replay"
	ActionDisconnect = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, participantID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldParticipantID, participantID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, participantID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldParticipantID, participantID).
		Str(FieldDetail, detail).
		Msg(msg)
}
