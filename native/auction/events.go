package auction

import (
	"strconv"

	"vaultauction/core/types"
)

const (
	EventTypeInitialized     = "auction.initialized"
	EventTypeOwnerChanged    = "auction.owner_changed"
	EventTypeSettingsCreated = "auction.settings_created"
	EventTypeStarted         = "auction.started"
	EventTypeBidPlaced       = "auction.bid_placed"
	EventTypeOutbid          = "auction.outbid"
	EventTypeExtended        = "auction.extended"
	EventTypeBidWithdrawn    = "auction.bid_withdrawn"
	EventTypeEnded           = "auction.ended"
	EventTypeClaimed         = "auction.claimed"
	EventTypeRedeemed        = "auction.redeemed"
	EventTypeTreasuryClosed  = "auction.treasury_closed"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// NewInitializedEvent reports the creation of the program authority.
func NewInitializedEvent(a *Authority) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"authority": a.Address.Hex(),
		"owner":     a.Owner.Hex(),
	}}
}

// NewOwnerChangedEvent reports an owner transfer.
func NewOwnerChangedEvent(a *Authority, previous types.Address) *types.Event {
	return &types.Event{Type: EventTypeOwnerChanged, Attributes: map[string]string{
		"authority":     a.Address.Hex(),
		"previousOwner": previous.Hex(),
		"owner":         a.Owner.Hex(),
	}}
}

// NewSettingsCreatedEvent reports a new settings record.
func NewSettingsCreatedEvent(s *Settings) *types.Event {
	return &types.Event{Type: EventTypeSettingsCreated, Attributes: map[string]string{
		"settings":        s.ID.Hex(),
		"duration":        u64(s.Duration),
		"softClosePeriod": u64(s.SoftClosePeriod),
		"bidIncrement":    u64(s.BidIncrement),
		"facilitatorFee":  u64(s.FacilitatorFee),
	}}
}

// NewStartedEvent reports a freshly opened auction.
func NewStartedEvent(a *Auction) *types.Event {
	return &types.Event{Type: EventTypeStarted, Attributes: map[string]string{
		"auction":      a.ID.Hex(),
		"vault":        a.Vault.Hex(),
		"settings":     a.Settings.Hex(),
		"bidder":       a.TopBidder.Hex(),
		"amount":       u64(a.TopBid),
		"reservePrice": u64(a.ReservePrice),
		"endTimestamp": u64(a.EndTimestamp),
	}}
}

// NewBidPlacedEvent reports an accepted bid.
func NewBidPlacedEvent(a *Auction, b *Bid) *types.Event {
	return &types.Event{Type: EventTypeBidPlaced, Attributes: map[string]string{
		"auction":      a.ID.Hex(),
		"bid":          b.ID.Hex(),
		"bidder":       b.Bidder.Hex(),
		"amount":       u64(b.Amount),
		"endTimestamp": u64(a.EndTimestamp),
	}}
}

// NewOutbidEvent reports the refund of a displaced top bid.
func NewOutbidEvent(a *Auction, b *Bid) *types.Event {
	return &types.Event{Type: EventTypeOutbid, Attributes: map[string]string{
		"auction": a.ID.Hex(),
		"bid":     b.ID.Hex(),
		"bidder":  b.Bidder.Hex(),
		"amount":  u64(b.Amount),
	}}
}

// NewExtendedEvent reports a soft-close extension.
func NewExtendedEvent(a *Auction, previousEnd uint64) *types.Event {
	return &types.Event{Type: EventTypeExtended, Attributes: map[string]string{
		"auction":      a.ID.Hex(),
		"previousEnd":  u64(previousEnd),
		"endTimestamp": u64(a.EndTimestamp),
	}}
}

// NewBidWithdrawnEvent reports a drained and closed bid.
func NewBidWithdrawnEvent(b *Bid, destination types.Address, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeBidWithdrawn, Attributes: map[string]string{
		"auction":     b.Auction.Hex(),
		"bid":         b.ID.Hex(),
		"bidder":      b.Bidder.Hex(),
		"destination": destination.Hex(),
		"amount":      u64(amount),
	}}
}

// NewEndedEvent reports fee settlement.
func NewEndedEvent(a *Auction, feeAccount types.Address, fee uint64) *types.Event {
	return &types.Event{Type: EventTypeEnded, Attributes: map[string]string{
		"auction":    a.ID.Hex(),
		"winner":     a.TopBidder.Hex(),
		"topBid":     u64(a.TopBid),
		"feeAccount": feeAccount.Hex(),
		"fee":        u64(fee),
	}}
}

// NewClaimedEvent reports the release of vault contents to the winner.
func NewClaimedEvent(a *Auction, box, destination types.Address, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"auction":          a.ID.Hex(),
		"winner":           a.TopBidder.Hex(),
		"safetyDepositBox": box.Hex(),
		"destination":      destination.Hex(),
		"amount":           u64(amount),
	}}
}

// NewRedeemedEvent reports a fraction redemption.
func NewRedeemedEvent(a *Auction, holder, destination types.Address, fractions, payment uint64) *types.Event {
	return &types.Event{Type: EventTypeRedeemed, Attributes: map[string]string{
		"auction":     a.ID.Hex(),
		"holder":      holder.Hex(),
		"destination": destination.Hex(),
		"fractions":   u64(fractions),
		"payment":     u64(payment),
	}}
}

// NewTreasuryClosedEvent reports that the payment treasury drained to zero.
func NewTreasuryClosedEvent(a *Auction) *types.Event {
	return &types.Event{Type: EventTypeTreasuryClosed, Attributes: map[string]string{
		"auction":  a.ID.Hex(),
		"treasury": a.PaymentTreasury.Hex(),
	}}
}
