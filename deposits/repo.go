package deposits

import "github.com/danaasamuel2023/senyo-sub001/events"

// Repo holds the balance updates waiting to be collected by each user's
// poller, oldest first.
type Repo interface {
	Push(userID string, update *events.BalanceDetail) error
	// Pop removes and returns the oldest pending update. It returns
	// errors.ErrNotFound when the queue is empty.
	Pop(userID string) (*events.BalanceDetail, error)
	Len(userID string) int
}
