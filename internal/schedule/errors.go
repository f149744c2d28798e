package schedule

import (
	"errors"
	"fmt"

	"cadence/internal/storage"
)

var (
	ErrValidation        = errors.New("invalid schedule")
	ErrNotFound          = errors.New("schedule not found")
	ErrPersistence       = errors.New("schedule store failed")
	ErrTimerRegistration = errors.New("timer registration failed")
	ErrActionExecution   = errors.New("action failed")
	ErrHistoryRecording  = errors.New("history recording failed")
	ErrInactive          = errors.New("schedule is inactive")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr maps a storage error to the manager taxonomy.
func storeErr(op string, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
