// Package resetstore records a pending client reset inside the synchronized database so
// that an interrupted reset can be discovered and resumed after a restart.
//
// The store is a stateless facade: every operation resolves the schema afresh from the
// transactional view it is handed and keeps nothing once it returns. Write operations
// never commit; the caller owns the transaction.
package resetstore

import (
	"fmt"
	"strings"
	"time"
)

// ResyncMode is the policy used to reconcile local changes during a client reset.
type ResyncMode string

const (
	// ResyncModeManual leaves the reset to the application.
	ResyncModeManual ResyncMode = "manual"
	// ResyncModeDiscardLocal drops unsynced local changes.
	ResyncModeDiscardLocal ResyncMode = "discard_local"
	// ResyncModeRecover replays unsynced local changes on top of the fresh server state.
	ResyncModeRecover ResyncMode = "recover"
	// ResyncModeRecoverOrDiscard attempts recovery and falls back to discarding local changes.
	ResyncModeRecoverOrDiscard ResyncMode = "recover_or_discard"
)

// Action is the protocol-level action that triggered a reset.
type Action string

const (
	ActionNoAction              Action = "no_action"
	ActionProtocolViolation     Action = "protocol_violation"
	ActionApplicationBug        Action = "application_bug"
	ActionWarning               Action = "warning"
	ActionTransient             Action = "transient"
	ActionDeleteRealm           Action = "delete_realm"
	ActionClientReset           Action = "client_reset"
	ActionClientResetNoRecovery Action = "client_reset_no_recovery"
	ActionMigrateToFLX          Action = "migrate_to_flx"
	ActionRevertToPBS           Action = "revert_to_pbs"
	ActionRefreshUser           Action = "refresh_user"
	ActionRefreshLocation       Action = "refresh_location"
	ActionLogOut                Action = "log_out"
	ActionMigrateSchema         Action = "migrate_schema"
	ActionBackupThenDeleteRealm Action = "backup_then_delete_realm"
)

// ResyncModes lists every defined resync mode.
func ResyncModes() []ResyncMode {
	return []ResyncMode{
		ResyncModeManual,
		ResyncModeDiscardLocal,
		ResyncModeRecover,
		ResyncModeRecoverOrDiscard,
	}
}

// Actions lists every defined action.
func Actions() []Action {
	return []Action{
		ActionNoAction,
		ActionProtocolViolation,
		ActionApplicationBug,
		ActionWarning,
		ActionTransient,
		ActionDeleteRealm,
		ActionClientReset,
		ActionClientResetNoRecovery,
		ActionMigrateToFLX,
		ActionRevertToPBS,
		ActionRefreshUser,
		ActionRefreshLocation,
		ActionLogOut,
		ActionMigrateSchema,
		ActionBackupThenDeleteRealm,
	}
}

// ParseResyncMode normalizes operator input into a ResyncMode.
func ParseResyncMode(raw string) (ResyncMode, error) {
	mode := ResyncMode(normalizeEnum(raw))
	if _, err := FromResyncMode(mode); err != nil {
		return "", err
	}
	return mode, nil
}

// ParseAction normalizes operator input into an Action. Empty input means no action.
func ParseAction(raw string) (Action, error) {
	normalized := normalizeEnum(raw)
	if normalized == "" {
		return ActionNoAction, nil
	}
	action := Action(normalized)
	if _, err := FromResetAction(action); err != nil {
		return "", err
	}
	return action, nil
}

func normalizeEnum(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(value, "-", "_")
}

// ErrorCode is the server-communicated error code behind a reset.
type ErrorCode int64

// Status describes why the server asked for a reset.
type Status struct {
	Code    ErrorCode
	Message string
}

func (s Status) String() string {
	return fmt.Sprintf("%d: %s", s.Code, s.Message)
}

// PendingReset is the durable marker of a reset that has been decided but not completed.
type PendingReset struct {
	Time   time.Time
	Mode   ResyncMode
	Action Action
	Error  *Status
}

// Is reports whether the pending reset was triggered by action.
func (p PendingReset) Is(action Action) bool {
	return p.Action == action
}

// Equal reports whether both markers describe the same reset.
func (p PendingReset) Equal(other PendingReset) bool {
	if !p.Time.Equal(other.Time) || p.Mode != other.Mode || p.Action != other.Action {
		return false
	}
	switch {
	case p.Error == nil && other.Error == nil:
		return true
	case p.Error == nil || other.Error == nil:
		return false
	default:
		return *p.Error == *other.Error
	}
}

func (p PendingReset) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "pending reset {time: %s, mode: %s, action: %s",
		p.Time.UTC().Format(time.RFC3339Nano), p.Mode, p.Action)
	if p.Error != nil {
		fmt.Fprintf(&builder, ", error: %s", p.Error)
	}
	builder.WriteString("}")
	return builder.String()
}
