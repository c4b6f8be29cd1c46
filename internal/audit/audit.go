package audit

import (
	"context"

	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// Audit actions.
const (
	ActionAssignHost    = "room.assign_host"
	ActionSessionReset  = "room.session_reset"
	ActionCreateRoom    = "room.create"
	ActionSetVisibility = "room.set_visibility"
	ActionBan           = "moderation.ban"
	ActionUnban         = "moderation.unban"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldTarget = "target"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, room, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoom, room).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry for an action taken on another identity.
func LogTarget(ctx context.Context, action, room, userID, target, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoom, room).
		Str(log.FieldUserID, userID).
		Str(FieldTarget, target).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, room, userID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoom, room).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
