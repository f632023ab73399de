// Package deposits simulates mobile-money top-up confirmations: a confirmed
// deposit credits the wallet and queues a balance update for the user's
// poller to collect.
package deposits

import (
	"fmt"
	"math"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/events"
	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/google/uuid"
)

const referencePrefix = "DEP-"

type Service struct {
	users   users.Repo
	repo    Repo
	nowFunc func() time.Time
}

type Option func(*Service)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func New(userRepo users.Repo, repo Repo, options ...Option) *Service {
	s := &Service{
		users:   userRepo,
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Confirm credits amount to the user's wallet and queues the resulting
// balance update.
func (s *Service) Confirm(userID string, amount float64) (*events.BalanceDetail, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperrors.ErrInvalidAmount
	}

	balance, err := s.users.AdjustBalance(userID, amount)
	if err != nil {
		return nil, apperrors.Wrapf(err, "crediting wallet of %s", userID)
	}

	update := &events.BalanceDetail{
		NewBalance: balance,
		Reference:  referencePrefix + uuid.New().String(),
		Amount:     amount,
		Timestamp:  s.nowFunc().UTC(),
	}
	if err := s.repo.Push(userID, update); err != nil {
		return nil, fmt.Errorf("queueing balance update: %w", err)
	}
	return update, nil
}

// Next pops the oldest pending update for userID. ok is false when there is
// nothing to report.
func (s *Service) Next(userID string) (update *events.BalanceDetail, ok bool, err error) {
	update, err = s.repo.Pop(userID)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return update, true, nil
}
