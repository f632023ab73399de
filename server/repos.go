package server

import (
	"github.com/danaasamuel2023/senyo-sub001/deposits"
	depositrepofake "github.com/danaasamuel2023/senyo-sub001/deposits/repofake"
	"github.com/danaasamuel2023/senyo-sub001/token/refresh"
	refreshrepofake "github.com/danaasamuel2023/senyo-sub001/token/refresh/repofake"
	"github.com/danaasamuel2023/senyo-sub001/users"
	fakeuserrepo "github.com/danaasamuel2023/senyo-sub001/users/repofake"
)

// Repos groups the stores the backend runs on.
type Repos struct {
	Users    users.Repo
	Refresh  refresh.Repo
	Deposits deposits.Repo
}

// NewInMemoryRepos returns process-local repos. Everything is lost on
// restart, which is what `senyo serve` wants for local development.
func NewInMemoryRepos() Repos {
	return Repos{
		Users:    fakeuserrepo.NewFakeUserRepo(),
		Refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
		Deposits: depositrepofake.NewFakeDepositRepo(),
	}
}
