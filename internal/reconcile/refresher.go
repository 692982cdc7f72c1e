package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tasklyhq/assistant/internal/store"
)

// TaskLister reads a user's task list.
type TaskLister interface {
	Tasks(userID string) ([]store.Task, error)
}

// StoreRefresher reloads the user's task list from the store after a
// confirmation queue drains, so the next schedule context reflects what was
// just added. Clients poll the list; there is no push channel here.
type StoreRefresher struct {
	lister TaskLister
	logger zerolog.Logger
}

// NewStoreRefresher creates a StoreRefresher.
func NewStoreRefresher(lister TaskLister, logger zerolog.Logger) *StoreRefresher {
	return &StoreRefresher{
		lister: lister,
		logger: logger.With().Str("component", "task_refresh").Logger(),
	}
}

func (r *StoreRefresher) RefreshTaskList(_ context.Context, userID string) error {
	tasks, err := r.lister.Tasks(userID)
	if err != nil {
		return err
	}
	r.logger.Debug().Str("user_id", userID).Int("count", len(tasks)).Msg("task list reloaded")
	return nil
}
