package resetstore

import "fmt"

// The integers below are persisted. Existing entries must never be renumbered or reused;
// new values are appended with the next free integer.

// FromResyncMode returns the stored integer for mode.
func FromResyncMode(mode ResyncMode) (int64, error) {
	switch mode {
	case ResyncModeManual:
		return 0, nil
	case ResyncModeDiscardLocal:
		return 1, nil
	case ResyncModeRecover:
		return 2, nil
	case ResyncModeRecoverOrDiscard:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidResyncMode, string(mode))
	}
}

// ToResyncMode decodes a stored integer into a ResyncMode.
func ToResyncMode(value int64) (ResyncMode, error) {
	switch value {
	case 0:
		return ResyncModeManual, nil
	case 1:
		return ResyncModeDiscardLocal, nil
	case 2:
		return ResyncModeRecover, nil
	case 3:
		return ResyncModeRecoverOrDiscard, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownResyncMode, value)
	}
}

// FromResetAction returns the stored integer for action.
func FromResetAction(action Action) (int64, error) {
	switch action {
	case ActionNoAction:
		return 0, nil
	case ActionProtocolViolation:
		return 1, nil
	case ActionApplicationBug:
		return 2, nil
	case ActionWarning:
		return 3, nil
	case ActionTransient:
		return 4, nil
	case ActionDeleteRealm:
		return 5, nil
	case ActionClientReset:
		return 6, nil
	case ActionClientResetNoRecovery:
		return 7, nil
	case ActionMigrateToFLX:
		return 8, nil
	case ActionRevertToPBS:
		return 9, nil
	case ActionRefreshUser:
		return 10, nil
	case ActionRefreshLocation:
		return 11, nil
	case ActionLogOut:
		return 12, nil
	case ActionMigrateSchema:
		return 13, nil
	case ActionBackupThenDeleteRealm:
		return 14, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidResetAction, string(action))
	}
}

// ToResetAction decodes a stored integer into an Action.
func ToResetAction(value int64) (Action, error) {
	switch value {
	case 0:
		return ActionNoAction, nil
	case 1:
		return ActionProtocolViolation, nil
	case 2:
		return ActionApplicationBug, nil
	case 3:
		return ActionWarning, nil
	case 4:
		return ActionTransient, nil
	case 5:
		return ActionDeleteRealm, nil
	case 6:
		return ActionClientReset, nil
	case 7:
		return ActionClientResetNoRecovery, nil
	case 8:
		return ActionMigrateToFLX, nil
	case 9:
		return ActionRevertToPBS, nil
	case 10:
		return ActionRefreshUser, nil
	case 11:
		return ActionRefreshLocation, nil
	case 12:
		return ActionLogOut, nil
	case 13:
		return ActionMigrateSchema, nil
	case 14:
		return ActionBackupThenDeleteRealm, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownResetAction, value)
	}
}
