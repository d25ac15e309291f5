package auction

import (
	"vaultauction/core/types"
	"vaultauction/crypto"
)

// AuthorityAddress is the identity that owns vaults put up for auction.
func AuthorityAddress(program types.Address) types.Address {
	return crypto.Derive(program, "authority", program)
}

// SettingsAddress identifies the nonce-th settings record of an authority.
func SettingsAddress(program, authority types.Address, nonce uint64) types.Address {
	return crypto.DeriveIndexed(program, "settings", authority, nonce)
}

// AuctionAddress identifies the single auction a vault may have.
func AuctionAddress(program, vault types.Address) types.Address {
	return crypto.Derive(program, "auction", vault)
}

// BidAddress identifies a bidder's live bid on an auction.
func BidAddress(program, bidder, auction types.Address) types.Address {
	return crypto.Derive(program, "bid", bidder, auction)
}

// TreasuryAddress is the payment treasury token account of an auction.
func TreasuryAddress(program, auction types.Address) types.Address {
	return crypto.Derive(program, "treasury", auction)
}

// EscrowAddress is the token account holding refunds for a bid.
func EscrowAddress(program, bid types.Address) types.Address {
	return crypto.Derive(program, "escrow", bid)
}

var (
	authorityPrefix = []byte("auction/authority/")
	settingsPrefix  = []byte("auction/settings/")
	auctionPrefix   = []byte("auction/auction/")
	bidPrefix       = []byte("auction/bid/")
)

func recordKey(prefix []byte, id types.Address) []byte {
	buf := make([]byte, len(prefix)+types.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], id[:])
	return buf
}
