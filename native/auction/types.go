package auction

import "vaultauction/core/types"

const (
	// MaxFacilitatorFee is the denominator of Settings.FacilitatorFee.
	MaxFacilitatorFee uint64 = 1_000_000_000
	// MaxBidIncrement is the denominator of Settings.BidIncrement.
	MaxBidIncrement uint64 = 1_000_000_000
)

// AuthorityConfig identifies the program instance an engine acts for. Every
// derived identity, including the authority that owns auctioned vaults, is
// computed from ProgramID.
type AuthorityConfig struct {
	ProgramID types.Address
}

// Authority is the singleton administrative record of a program instance.
type Authority struct {
	Address           types.Address
	Owner             types.Address
	NextSettingsNonce uint64
}

// Settings are immutable auction parameters shared by any number of auctions.
// Ratios are expressed in parts per MaxBidIncrement / MaxFacilitatorFee.
type Settings struct {
	ID              types.Address
	Duration        uint64
	SoftClosePeriod uint64
	BidIncrement    uint64
	FacilitatorFee  uint64
	CreatedAt       uint64
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// Auction is the per-vault auction record. It is never deleted and remains
// as settlement history once its treasury drains.
type Auction struct {
	ID              types.Address
	Vault           types.Address
	Settings        types.Address
	PaymentMint     types.Address
	PaymentTreasury types.Address
	StartTimestamp  uint64
	EndTimestamp    uint64
	TopBid          uint64
	TopBidder       types.Address
	ReservePrice    uint64
	FeePaid         bool
	TreasuryClosed  bool
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// Bid is a bidder's live record on one auction. The escrow account's transfer
// authority is the bid identity itself, so only the engine releases funds.
type Bid struct {
	ID            types.Address
	Bidder        types.Address
	Auction       types.Address
	Amount        uint64
	Timestamp     uint64
	Withdrawable  bool
	EscrowAccount types.Address
	Deposit       uint64
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

// Status summarises where an auction sits in its lifecycle.
type Status string

const (
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusSettled Status = "settled"
)

// StatusAt reports the auction status at the supplied unix timestamp.
func (a *Auction) StatusAt(now uint64) Status {
	switch {
	case a.FeePaid:
		return StatusSettled
	case now >= a.EndTimestamp:
		return StatusEnded
	default:
		return StatusActive
	}
}

// SettingsParams carries the administrator-supplied auction parameters.
type SettingsParams struct {
	Duration        uint64
	SoftClosePeriod uint64
	BidIncrement    uint64
	FacilitatorFee  uint64
}

// StartRequest opens an auction on a vault with the caller's opening bid.
// FractionAccount is the opener's own fraction holding, zero when none; the
// custody program burns it instead of charging for it.
type StartRequest struct {
	Bidder          types.Signer
	Vault           types.Address
	Settings        types.Address
	Pricing         types.Address
	PayingAccount   types.Address
	FractionAccount types.Address
	Amount          uint64
}

// PlaceBidRequest outbids the current top bidder.
type PlaceBidRequest struct {
	Bidder        types.Signer
	Auction       types.Address
	PayingAccount types.Address
	Amount        uint64
}

// WithdrawBidRequest releases an outbid escrow to Destination.
type WithdrawBidRequest struct {
	Bidder      types.Signer
	Auction     types.Address
	Destination types.Address
}

// EndRequest settles the facilitator fee into FeeAccount.
type EndRequest struct {
	Auction    types.Address
	FeeAccount types.Address
}

// ClaimRequest releases vault contents to the winner.
type ClaimRequest struct {
	Bidder           types.Signer
	Auction          types.Address
	SafetyDepositBox types.Address
	Destination      types.Address
	Amount           uint64
}

// RedeemRequest exchanges fractions for their share of the proceeds.
type RedeemRequest struct {
	Holder          types.Signer
	Auction         types.Address
	FractionAccount types.Address
	Destination     types.Address
	Amount          uint64
}
