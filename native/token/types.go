package token

import (
	"errors"

	"vaultauction/core/types"
)

var (
	ErrMintExists         = errors.New("token: mint already exists")
	ErrMintNotFound       = errors.New("token: mint not found")
	ErrAccountExists      = errors.New("token: account already exists")
	ErrAccountNotFound    = errors.New("token: account not found")
	ErrUnauthorized       = errors.New("token: signer is not the account authority")
	ErrMintMismatch       = errors.New("token: accounts hold different mints")
	ErrInsufficientFunds  = errors.New("token: insufficient balance")
	ErrNonZeroBalance     = errors.New("token: cannot close account with non-zero balance")
	ErrInsufficientNative = errors.New("token: insufficient native balance for storage deposit")
	ErrOverflow           = errors.New("token: balance overflow")
	ErrInvalidAmount      = errors.New("token: amount must be positive")
)

// Storage abstracts the subset of state functionality required by the
// ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Mint describes a fungible token.
type Mint struct {
	Address   types.Address
	Authority types.Address
	Supply    uint64
	Decimals  uint8
}

// Account holds a balance of a single mint. Owner is the transfer authority,
// which may be a derived program identity rather than a person.
type Account struct {
	Address types.Address
	Mint    types.Address
	Owner   types.Address
	Amount  uint64
	Deposit uint64
}

type nativeBalance struct {
	Amount uint64
}

var (
	mintPrefix    = []byte("token/mint/")
	accountPrefix = []byte("token/account/")
	nativePrefix  = []byte("token/native/")
)

func prefixed(prefix []byte, addr types.Address) []byte {
	buf := make([]byte, len(prefix)+types.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

func mintKey(addr types.Address) []byte    { return prefixed(mintPrefix, addr) }
func accountKey(addr types.Address) []byte { return prefixed(accountPrefix, addr) }
func nativeKey(addr types.Address) []byte  { return prefixed(nativePrefix, addr) }
