package users

type Repo interface {
	Upsert(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(id string) (*Account, error)
	List(offset, limit int) ([]*Account, error)
	// AdjustBalance adds amount to the wallet and returns the new balance.
	AdjustBalance(id string, amount float64) (float64, error)
}
