package token

import (
	"fmt"
	"math"

	"vaultauction/core/types"
)

// Ledger implements fungible balances, token account lifecycle and the native
// balance used to pay storage deposits. All reads go to the bound storage so a
// ledger scoped to a transaction always observes fresh values.
type Ledger struct {
	store   Storage
	deposit uint64
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// SetStorageDeposit configures the native amount locked by every new token
// account and returned when it closes.
func (l *Ledger) SetStorageDeposit(amount uint64) { l.deposit = amount }

func addChecked(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CreateMint registers a new mint with zero supply.
func (l *Ledger) CreateMint(addr, authority types.Address, decimals uint8) (*Mint, error) {
	ok, err := l.store.KVGet(mintKey(addr), nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrMintExists
	}
	mint := &Mint{Address: addr, Authority: authority, Decimals: decimals}
	if err := l.store.KVPut(mintKey(addr), mint); err != nil {
		return nil, err
	}
	return mint, nil
}

// Mint loads a mint definition.
func (l *Ledger) Mint(addr types.Address) (*Mint, error) {
	mint := new(Mint)
	ok, err := l.store.KVGet(mintKey(addr), mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMintNotFound
	}
	return mint, nil
}

// Supply returns the circulating supply of mint.
func (l *Ledger) Supply(addr types.Address) (uint64, error) {
	mint, err := l.Mint(addr)
	if err != nil {
		return 0, err
	}
	return mint.Supply, nil
}

// Account loads a token account.
func (l *Ledger) Account(addr types.Address) (*Account, error) {
	acc := new(Account)
	ok, err := l.store.KVGet(accountKey(addr), acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Exists reports whether a token account is open at addr.
func (l *Ledger) Exists(addr types.Address) (bool, error) {
	return l.store.KVGet(accountKey(addr), nil)
}

// Balance returns the amount held by the token account.
func (l *Ledger) Balance(addr types.Address) (uint64, error) {
	acc, err := l.Account(addr)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// OpenAccount creates an empty token account for mint controlled by owner.
// The payer funds the storage deposit from its native balance.
func (l *Ledger) OpenAccount(addr, mint, owner types.Address, payer types.Signer) (*Account, error) {
	if _, err := l.Mint(mint); err != nil {
		return nil, err
	}
	exists, err := l.Exists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	if l.deposit > 0 {
		if err := l.debitNative(payer.Address(), l.deposit); err != nil {
			return nil, err
		}
	}
	acc := &Account{Address: addr, Mint: mint, Owner: owner, Deposit: l.deposit}
	if err := l.store.KVPut(accountKey(addr), acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// MintTo increases supply and credits dest. The signer must be the mint
// authority.
func (l *Ledger) MintTo(mintAddr, dest types.Address, amount uint64, authority types.Signer) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	mint, err := l.Mint(mintAddr)
	if err != nil {
		return err
	}
	if !authority.Signs(mint.Authority) {
		return ErrUnauthorized
	}
	acc, err := l.Account(dest)
	if err != nil {
		return err
	}
	if acc.Mint != mintAddr {
		return ErrMintMismatch
	}
	if mint.Supply, err = addChecked(mint.Supply, amount); err != nil {
		return err
	}
	if acc.Amount, err = addChecked(acc.Amount, amount); err != nil {
		return err
	}
	if err := l.store.KVPut(mintKey(mintAddr), mint); err != nil {
		return err
	}
	return l.store.KVPut(accountKey(dest), acc)
}

// Transfer moves amount between two accounts of the same mint. The signer
// must own the source account. A zero amount is a validated no-op.
func (l *Ledger) Transfer(from, to types.Address, amount uint64, authority types.Signer) error {
	src, err := l.Account(from)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := l.Account(to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if !authority.Signs(src.Owner) {
		return ErrUnauthorized
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if amount == 0 || from == to {
		return nil
	}
	src.Amount -= amount
	if dst.Amount, err = addChecked(dst.Amount, amount); err != nil {
		return err
	}
	if err := l.store.KVPut(accountKey(from), src); err != nil {
		return err
	}
	return l.store.KVPut(accountKey(to), dst)
}

// Burn destroys amount from the account and reduces the mint supply.
func (l *Ledger) Burn(addr types.Address, amount uint64, authority types.Signer) error {
	acc, err := l.Account(addr)
	if err != nil {
		return err
	}
	if !authority.Signs(acc.Owner) {
		return ErrUnauthorized
	}
	if acc.Amount < amount {
		return ErrInsufficientFunds
	}
	if amount == 0 {
		return nil
	}
	mint, err := l.Mint(acc.Mint)
	if err != nil {
		return err
	}
	if mint.Supply < amount {
		return fmt.Errorf("token: supply underflow on mint %s", mint.Address)
	}
	acc.Amount -= amount
	mint.Supply -= amount
	if err := l.store.KVPut(mintKey(mint.Address), mint); err != nil {
		return err
	}
	return l.store.KVPut(accountKey(addr), acc)
}

// CloseAccount removes an empty token account and releases its storage
// deposit to destination.
func (l *Ledger) CloseAccount(addr, destination types.Address, authority types.Signer) error {
	acc, err := l.Account(addr)
	if err != nil {
		return err
	}
	if !authority.Signs(acc.Owner) {
		return ErrUnauthorized
	}
	if acc.Amount != 0 {
		return ErrNonZeroBalance
	}
	if err := l.store.KVDelete(accountKey(addr)); err != nil {
		return err
	}
	if acc.Deposit > 0 {
		return l.Fund(destination, acc.Deposit)
	}
	return nil
}

// NativeBalance returns the native balance available for storage deposits.
func (l *Ledger) NativeBalance(owner types.Address) (uint64, error) {
	var bal nativeBalance
	if _, err := l.store.KVGet(nativeKey(owner), &bal); err != nil {
		return 0, err
	}
	return bal.Amount, nil
}

// Fund credits owner's native balance.
func (l *Ledger) Fund(owner types.Address, amount uint64) error {
	current, err := l.NativeBalance(owner)
	if err != nil {
		return err
	}
	next, err := addChecked(current, amount)
	if err != nil {
		return err
	}
	return l.store.KVPut(nativeKey(owner), &nativeBalance{Amount: next})
}

// ChargeDeposit debits the configured storage deposit from payer and returns
// the amount locked. Program records that are not token accounts use it.
func (l *Ledger) ChargeDeposit(payer types.Signer) (uint64, error) {
	if l.deposit == 0 {
		return 0, nil
	}
	if err := l.debitNative(payer.Address(), l.deposit); err != nil {
		return 0, err
	}
	return l.deposit, nil
}

func (l *Ledger) debitNative(owner types.Address, amount uint64) error {
	current, err := l.NativeBalance(owner)
	if err != nil {
		return err
	}
	if current < amount {
		return ErrInsufficientNative
	}
	return l.store.KVPut(nativeKey(owner), &nativeBalance{Amount: current - amount})
}
