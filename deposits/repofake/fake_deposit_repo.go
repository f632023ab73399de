package depositrepofake

import (
	"sync"

	"github.com/danaasamuel2023/senyo-sub001/deposits"
	"github.com/danaasamuel2023/senyo-sub001/events"
	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
)

var _ deposits.Repo = (*FakeDepositRepo)(nil)

type FakeDepositRepo struct {
	pending map[string][]events.BalanceDetail
	lock    sync.Mutex
}

func NewFakeDepositRepo() *FakeDepositRepo {
	return &FakeDepositRepo{
		pending: make(map[string][]events.BalanceDetail),
	}
}

func (r *FakeDepositRepo) Push(userID string, update *events.BalanceDetail) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pending[userID] = append(r.pending[userID], *update)
	return nil
}

func (r *FakeDepositRepo) Pop(userID string) (*events.BalanceDetail, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	queue := r.pending[userID]
	if len(queue) == 0 {
		return nil, apperrors.ErrNotFound
	}
	update := queue[0]
	if len(queue) == 1 {
		delete(r.pending, userID)
	} else {
		r.pending[userID] = queue[1:]
	}
	return &update, nil
}

func (r *FakeDepositRepo) Len(userID string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.pending[userID])
}
