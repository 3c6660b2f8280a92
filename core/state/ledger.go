package state

import (
	"fmt"
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/types"
)

// BalanceOf returns the external ledger balance of addr.
func (tx *Tx) BalanceOf(addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := tx.load(accountKey(addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (tx *Tx) setBalance(addr [20]byte, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	return tx.store(accountKey(addr), amount)
}

// Credit mints amount into addr's ledger balance. It is used by genesis
// funding and fixtures.
func (tx *Tx) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	balance, err := tx.BalanceOf(addr)
	if err != nil {
		return err
	}
	return tx.setBalance(addr, new(big.Int).Add(balance, amount))
}

// Transfer moves amount between two ledger accounts. It is all-or-nothing:
// if from cannot cover amount nothing is written.
func (tx *Tx) Transfer(from, to [20]byte, amount *big.Int) error {
	amt := types.CloneAmount(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if amt.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := tx.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("ledger transfer of %s: %w", amt, pcnerrors.ErrInsufficientFunds)
	}
	toBal, err := tx.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := tx.setBalance(from, new(big.Int).Sub(fromBal, amt)); err != nil {
		return err
	}
	return tx.setBalance(to, new(big.Int).Add(toBal, amt))
}
