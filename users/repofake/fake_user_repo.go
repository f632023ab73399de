package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/danaasamuel2023/senyo-sub001/internal/errors"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/google/uuid"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.Account
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	stored := *account
	ur.users[account.ID] = &stored
	ur.emailIds[normaliseEmail(account.Email)] = account.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	account := *ur.users[id]
	return &account, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	account := *stored
	return &account, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	accounts := make([]*users.Account, 0, len(ur.users))
	for _, v := range ur.users {
		account := *v
		accounts = append(accounts, &account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Email < accounts[j].Email
	})

	if offset < 0 || offset >= len(accounts) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(accounts) {
		end = len(accounts)
	}
	return accounts[offset:end], nil
}

func (ur *FakeUserRepo) AdjustBalance(id string, amount float64) (float64, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	account, ok := ur.users[id]
	if !ok {
		return 0, apperrors.ErrUserNotFound
	}
	account.WalletBalance += amount
	return account.WalletBalance, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
