package vault

import (
	"errors"

	"vaultauction/core/types"
)

var (
	ErrVaultExists               = errors.New("vault: vault already exists")
	ErrVaultNotFound             = errors.New("vault: vault not found")
	ErrBoxNotFound               = errors.New("vault: safety deposit box not found")
	ErrBoxVaultMismatch          = errors.New("vault: safety deposit box belongs to another vault")
	ErrPricingNotFound           = errors.New("vault: pricing record not found")
	ErrPricingMismatch           = errors.New("vault: pricing record is not the vault's pricing lookup")
	ErrNotAllowedToCombine       = errors.New("vault: pricing record does not allow combination")
	ErrUnauthorized              = errors.New("vault: signer is not the vault authority")
	ErrInvalidState              = errors.New("vault: operation not permitted in current vault state")
	ErrFractionMintMismatch      = errors.New("vault: token account does not hold the vault's fractions")
	ErrPriceMintMismatch         = errors.New("vault: token account does not hold the pricing mint")
	ErrInsufficientVaultContents = errors.New("vault: safety deposit box holds less than requested")
	ErrOverflow                  = errors.New("vault: numerical overflow")
	ErrInvalidAmount             = errors.New("vault: amount must be positive")
)

// State is the custodial lifecycle of a vault.
type State uint8

const (
	StateInactive State = iota
	StateActive
	StateCombined
	StateDeactivated
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateCombined:
		return "combined"
	case StateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// Vault holds the underlying assets of a fractionalised collection.
type Vault struct {
	Address                   types.Address
	FractionMint              types.Address
	Authority                 types.Address
	FractionTreasury          types.Address
	RedeemTreasury            types.Address
	PricingLookup             types.Address
	AllowFurtherShareCreation bool
	TokenTypeCount            uint8
	State                     State
	LockedPricePerShare       uint64
}

// SafetyDepositBox is one asset slot of a vault.
type SafetyDepositBox struct {
	Address   types.Address
	Vault     types.Address
	TokenMint types.Address
	Store     types.Address
	Order     uint8
}

// Pricing is the external valuation record produced by the price tracker.
type Pricing struct {
	Address          types.Address
	PriceMint        types.Address
	PricePerShare    uint64
	AllowedToCombine bool
}

// CombineRequest buys out every circulating fraction at the pricing record's
// per-share price.
type CombineRequest struct {
	Vault             types.Address
	Pricing           types.Address
	OutstandingShares types.Address // payer's fraction account, zero when none
	PayingAccount     types.Address
	Payer             types.Signer
	NewAuthority      types.Address
	Authority         types.Signer
}

// WithdrawRequest moves assets out of a safety deposit box.
type WithdrawRequest struct {
	Vault       types.Address
	Box         types.Address
	Destination types.Address
	Amount      uint64
	Authority   types.Signer
}

// RedeemSharesRequest burns fractions of a combined vault for the locked
// per-share price.
type RedeemSharesRequest struct {
	Vault       types.Address
	Source      types.Address
	Destination types.Address
	Amount      uint64
	Owner       types.Signer
}

// Storage abstracts the subset of state functionality required by custody.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	vaultPrefix   = []byte("vault/vault/")
	boxPrefix     = []byte("vault/box/")
	pricingPrefix = []byte("vault/pricing/")
)

func prefixed(prefix []byte, addr types.Address) []byte {
	buf := make([]byte, len(prefix)+types.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}
