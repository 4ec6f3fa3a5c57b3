package ledger

import (
	"errors"
	"fmt"

	"github.com/liberland/federated-bridge/internal/db"
	"github.com/liberland/federated-bridge/internal/types"
	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrKeepAlive           = errors.New("transfer would kill account")
	ErrExistentialDeposit  = errors.New("amount below existential deposit")
)

// Ledger is the free balance book of a single asset.
type Ledger struct {
	db                 *gorm.DB
	asset              string
	existentialDeposit types.Balance
}

func New(tx *gorm.DB, asset string, existentialDeposit types.Balance) *Ledger {
	return &Ledger{db: tx, asset: asset, existentialDeposit: existentialDeposit}
}

func (l *Ledger) Asset() string { return l.asset }

func (l *Ledger) row(account types.AccountId) (*db.Balance, error) {
	var row db.Balance
	res := l.db.Where("asset = ? AND account = ?", l.asset, account.Hex()).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &db.Balance{Asset: l.asset, Account: account.Hex()}, nil
	}
	return &row, nil
}

func (l *Ledger) save(row *db.Balance) error {
	if row.ID == 0 {
		return l.db.Create(row).Error
	}
	return l.db.Model(&db.Balance{}).Where("id = ?", row.ID).Update("free", row.Free).Error
}

func (l *Ledger) BalanceOf(account types.AccountId) (types.Balance, error) {
	row, err := l.row(account)
	if err != nil {
		return types.ZeroBalance, err
	}
	return row.Free, nil
}

// Transfer moves amount from one account to another. With keepAlive the
// sender must stay at or above the existential deposit.
func (l *Ledger) Transfer(from, to types.AccountId, amount types.Balance, keepAlive bool) error {
	if amount.IsZero() || from == to {
		return nil
	}
	src, err := l.row(from)
	if err != nil {
		return err
	}
	if src.Free.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, src.Free, l.asset, amount)
	}
	remaining := src.Free.SaturatingSub(amount)
	if keepAlive && remaining.Cmp(l.existentialDeposit) < 0 {
		return ErrKeepAlive
	}

	dst, err := l.row(to)
	if err != nil {
		return err
	}
	credited := dst.Free.SaturatingAdd(amount)
	if credited.Cmp(l.existentialDeposit) < 0 {
		return ErrExistentialDeposit
	}

	src.Free = remaining
	dst.Free = credited
	if err := l.save(src); err != nil {
		return err
	}
	return l.save(dst)
}

// Mint credits new issuance, used for genesis endowments.
func (l *Ledger) Mint(account types.AccountId, amount types.Balance) error {
	row, err := l.row(account)
	if err != nil {
		return err
	}
	row.Free = row.Free.SaturatingAdd(amount)
	return l.save(row)
}

// TotalIssuance sums all balances of the asset.
func (l *Ledger) TotalIssuance() (types.Balance, error) {
	var rows []db.Balance
	if err := l.db.Where("asset = ?", l.asset).Find(&rows).Error; err != nil {
		return types.ZeroBalance, err
	}
	total := types.ZeroBalance
	for _, row := range rows {
		total = total.SaturatingAdd(row.Free)
	}
	return total, nil
}
