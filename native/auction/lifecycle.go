package auction

import (
	"fmt"

	"vaultauction/core/types"
	"vaultauction/native/vault"
)

// payingAccount loads a bidder's funding account and checks it can cover
// amount in the expected mint.
func (e *Engine) payingAccount(addr types.Address, bidder types.Signer, amount uint64) (mint types.Address, err error) {
	acc, err := e.ledger.Account(addr)
	if err != nil {
		return types.Address{}, fmt.Errorf("paying account: %w", err)
	}
	if !bidder.Signs(acc.Owner) {
		return types.Address{}, ErrPayingAccountNotOwned
	}
	if acc.Amount < amount {
		return types.Address{}, ErrInsufficientFunds
	}
	return acc.Mint, nil
}

// Start combines the vault through the custody program and opens its
// auction with the caller's opening bid. The amount the custody program
// consumes from the paying account becomes the reserve price; the remainder
// of the opening bid is moved into the payment treasury.
func (e *Engine) Start(req StartRequest) (*Auction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	authority, err := e.loadAuthority()
	if err != nil {
		return nil, err
	}
	settings, err := e.loadSettings(req.Settings)
	if err != nil {
		return nil, err
	}
	payingMint, err := e.payingAccount(req.PayingAccount, req.Bidder, req.Amount)
	if err != nil {
		return nil, err
	}
	v, err := e.gateway.Vault(req.Vault)
	if err != nil {
		return nil, err
	}
	if v.Authority != authority.Address {
		return nil, ErrVaultNotOwnedByAuctionAuthority
	}
	if v.PricingLookup != req.Pricing {
		return nil, ErrPriceAccountMismatch
	}
	pricing, err := e.gateway.Pricing(req.Pricing)
	if err != nil {
		return nil, err
	}
	if !pricing.AllowedToCombine {
		return nil, ErrVaultCannotBeCombined
	}
	if v.State != vault.StateActive {
		return nil, ErrVaultNotInActiveState
	}
	if payingMint != pricing.PriceMint {
		return nil, ErrPaymentMintMismatch
	}
	auctionID := e.AuctionAddress(req.Vault)
	exists, err := e.auctionExists(auctionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAuctionExists
	}

	reserve, err := e.combine(req, authority)
	if err != nil {
		return nil, err
	}
	minimum, err := MinimumStartingBid(reserve, settings.FacilitatorFee)
	if err != nil {
		return nil, err
	}
	if req.Amount < minimum {
		return nil, ErrBidLessThanReservePrice
	}
	// The combine call cannot take more than the opening bid once the
	// minimum check passes, so the subtraction cannot wrap.
	remainder := req.Amount - reserve

	now := e.now()
	end, err := checkedAdd(now, settings.Duration)
	if err != nil {
		return nil, err
	}
	auction := &Auction{
		ID:              auctionID,
		Vault:           req.Vault,
		Settings:        settings.ID,
		PaymentMint:     pricing.PriceMint,
		PaymentTreasury: TreasuryAddress(e.config.ProgramID, auctionID),
		StartTimestamp:  now,
		EndTimestamp:    end,
		TopBid:          req.Amount,
		TopBidder:       req.Bidder.Address(),
		ReservePrice:    reserve,
	}
	if _, err := e.ledger.OpenAccount(auction.PaymentTreasury, auction.PaymentMint, auction.ID, req.Bidder); err != nil {
		return nil, fmt.Errorf("payment treasury: %w", err)
	}
	if err := e.ledger.Transfer(req.PayingAccount, auction.PaymentTreasury, remainder, req.Bidder); err != nil {
		return nil, err
	}
	bid, err := e.openBid(auction, req.Bidder, req.Amount, now)
	if err != nil {
		return nil, err
	}
	if err := e.storeAuction(auction); err != nil {
		return nil, err
	}
	e.emit(NewStartedEvent(auction))
	e.emit(NewBidPlacedEvent(auction, bid))
	return auction.Clone(), nil
}

// combine invokes the custody program and cross-checks the reported
// consumption against the paying account's observed balance delta.
func (e *Engine) combine(req StartRequest, authority *Authority) (uint64, error) {
	before, err := e.ledger.Balance(req.PayingAccount)
	if err != nil {
		return 0, err
	}
	consumed, err := e.gateway.Combine(vault.CombineRequest{
		Vault:             req.Vault,
		Pricing:           req.Pricing,
		OutstandingShares: req.FractionAccount,
		PayingAccount:     req.PayingAccount,
		Payer:             req.Bidder,
		NewAuthority:      authority.Address,
		Authority:         e.authoritySigner(),
	})
	if err != nil {
		return 0, fmt.Errorf("combine vault: %w", err)
	}
	after, err := e.ledger.Balance(req.PayingAccount)
	if err != nil {
		return 0, err
	}
	if after > before || before-after != consumed {
		return 0, ErrCombineAccountingMismatch
	}
	return consumed, nil
}

// openBid creates the bid record and its empty escrow account. Bid funds
// live in the payment treasury until the bid is outbid.
func (e *Engine) openBid(auction *Auction, bidder types.Signer, amount, now uint64) (*Bid, error) {
	id := e.BidAddress(bidder.Address(), auction.ID)
	exists, err := e.bidExists(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrBidAlreadyExists
	}
	deposit, err := e.ledger.ChargeDeposit(bidder)
	if err != nil {
		return nil, err
	}
	bid := &Bid{
		ID:            id,
		Bidder:        bidder.Address(),
		Auction:       auction.ID,
		Amount:        amount,
		Timestamp:     now,
		EscrowAccount: EscrowAddress(e.config.ProgramID, id),
		Deposit:       deposit,
	}
	if _, err := e.ledger.OpenAccount(bid.EscrowAccount, auction.PaymentMint, bid.ID, bidder); err != nil {
		return nil, fmt.Errorf("bid escrow: %w", err)
	}
	if err := e.storeBid(bid); err != nil {
		return nil, err
	}
	return bid, nil
}

// PlaceBid outbids the current top bid. The full amount moves into the
// payment treasury and the displaced top bid is refunded from the treasury
// into its escrow, where it becomes withdrawable. A bid landing inside the
// soft-close window pushes the end out to now + SoftClosePeriod.
func (e *Engine) PlaceBid(req PlaceBidRequest) (*Bid, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	auction, err := e.loadAuction(req.Auction)
	if err != nil {
		return nil, err
	}
	settings, err := e.loadSettings(auction.Settings)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now >= auction.EndTimestamp {
		return nil, ErrAuctionHasEnded
	}
	mint, err := e.payingAccount(req.PayingAccount, req.Bidder, req.Amount)
	if err != nil {
		return nil, err
	}
	if mint != auction.PaymentMint {
		return nil, ErrPaymentMintMismatch
	}
	minimum, err := MinimumNextBid(auction.TopBid, settings.BidIncrement)
	if err != nil {
		return nil, err
	}
	if req.Amount < minimum {
		return nil, ErrBidTooLow
	}
	prior, err := e.loadBid(e.BidAddress(auction.TopBidder, auction.ID))
	if err != nil {
		return nil, fmt.Errorf("top bid: %w", err)
	}

	bid, err := e.openBid(auction, req.Bidder, req.Amount, now)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(req.PayingAccount, auction.PaymentTreasury, req.Amount, req.Bidder); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(auction.PaymentTreasury, prior.EscrowAccount, prior.Amount, e.auctionSigner(auction)); err != nil {
		return nil, fmt.Errorf("refund top bid: %w", err)
	}
	prior.Withdrawable = true
	if err := e.storeBid(prior); err != nil {
		return nil, err
	}

	auction.TopBid = req.Amount
	auction.TopBidder = req.Bidder.Address()
	previousEnd := auction.EndTimestamp
	if auction.EndTimestamp-now < settings.SoftClosePeriod {
		if auction.EndTimestamp, err = checkedAdd(now, settings.SoftClosePeriod); err != nil {
			return nil, err
		}
	}
	if err := e.storeAuction(auction); err != nil {
		return nil, err
	}
	e.emit(NewOutbidEvent(auction, prior))
	e.emit(NewBidPlacedEvent(auction, bid))
	if auction.EndTimestamp != previousEnd {
		e.emit(NewExtendedEvent(auction, previousEnd))
	}
	return bid.Clone(), nil
}

// WithdrawBid drains an outbid escrow into Destination and closes both the
// escrow account and the bid record, returning their deposits to the bidder.
// The current top bid can never be withdrawn.
func (e *Engine) WithdrawBid(req WithdrawBidRequest) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	auction, err := e.loadAuction(req.Auction)
	if err != nil {
		return 0, err
	}
	bidder := req.Bidder.Address()
	if bidder.IsZero() {
		return 0, ErrBidNotFound
	}
	bid, err := e.loadBid(e.BidAddress(bidder, auction.ID))
	if err != nil {
		return 0, err
	}
	if auction.TopBidder == bid.Bidder {
		return 0, ErrCannotWithdrawTopBid
	}
	amount, err := e.ledger.Balance(bid.EscrowAccount)
	if err != nil {
		return 0, err
	}
	signer := e.bidSigner(bid)
	if err := e.ledger.Transfer(bid.EscrowAccount, req.Destination, amount, signer); err != nil {
		return 0, err
	}
	if err := e.ledger.CloseAccount(bid.EscrowAccount, bid.Bidder, signer); err != nil {
		return 0, err
	}
	if err := e.deleteBid(bid.ID); err != nil {
		return 0, err
	}
	if bid.Deposit > 0 {
		if err := e.ledger.Fund(bid.Bidder, bid.Deposit); err != nil {
			return 0, err
		}
	}
	e.emit(NewBidWithdrawnEvent(bid, req.Destination, amount))
	return amount, nil
}

// End pays the facilitator fee out of the payment treasury. It succeeds
// exactly once per auction.
func (e *Engine) End(req EndRequest) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	auction, err := e.loadAuction(req.Auction)
	if err != nil {
		return 0, err
	}
	if auction.FeePaid {
		return 0, ErrFeeAlreadyDelivered
	}
	if e.now() < auction.EndTimestamp {
		return 0, ErrAuctionHasNotEnded
	}
	settings, err := e.loadSettings(auction.Settings)
	if err != nil {
		return 0, err
	}
	authority, err := e.loadAuthority()
	if err != nil {
		return 0, err
	}
	feeAccount, err := e.ledger.Account(req.FeeAccount)
	if err != nil {
		return 0, fmt.Errorf("fee account: %w", err)
	}
	if feeAccount.Owner != authority.Owner {
		return 0, ErrFeeAccountNotOwned
	}
	if feeAccount.Mint != auction.PaymentMint {
		return 0, ErrPaymentMintMismatch
	}
	fee, err := FacilitatorFee(auction.TopBid, settings.FacilitatorFee)
	if err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(auction.PaymentTreasury, req.FeeAccount, fee, e.auctionSigner(auction)); err != nil {
		return 0, fmt.Errorf("deliver fee: %w", err)
	}
	auction.FeePaid = true
	if err := e.storeAuction(auction); err != nil {
		return 0, err
	}
	e.emit(NewEndedEvent(auction, req.FeeAccount, fee))
	return fee, nil
}

// Claim releases Amount of a safety deposit box to the winner. The custody
// program bounds Amount by what the box actually holds.
func (e *Engine) Claim(req ClaimRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	auction, err := e.loadAuction(req.Auction)
	if err != nil {
		return err
	}
	if e.now() < auction.EndTimestamp {
		return ErrAuctionHasNotEnded
	}
	if !req.Bidder.Signs(auction.TopBidder) {
		return ErrNotAuctionWinner
	}
	if err := e.gateway.Withdraw(vault.WithdrawRequest{
		Vault:       auction.Vault,
		Box:         req.SafetyDepositBox,
		Destination: req.Destination,
		Amount:      req.Amount,
		Authority:   e.authoritySigner(),
	}); err != nil {
		return fmt.Errorf("withdraw from vault: %w", err)
	}
	e.emit(NewClaimedEvent(auction, req.SafetyDepositBox, req.Destination, req.Amount))
	return nil
}

// Redeem burns Amount fractions through the custody program, which pays the
// locked per-share price, and then pays the holder's pro-rata share of the
// payment treasury: floor(treasury * Amount / supply), with supply and
// treasury read fresh before the burn. The treasury is closed once it drains
// to zero; later redemptions still burn but receive nothing from it.
func (e *Engine) Redeem(req RedeemRequest) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	auction, err := e.loadAuction(req.Auction)
	if err != nil {
		return 0, err
	}
	if e.now() < auction.EndTimestamp {
		return 0, ErrAuctionHasNotEnded
	}
	if !auction.FeePaid {
		return 0, ErrFeeHasNotBeenDelivered
	}
	if req.Amount == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := e.gateway.Vault(auction.Vault)
	if err != nil {
		return 0, err
	}
	supply, err := e.ledger.Supply(v.FractionMint)
	if err != nil {
		return 0, err
	}
	var remaining uint64
	if !auction.TreasuryClosed {
		if remaining, err = e.ledger.Balance(auction.PaymentTreasury); err != nil {
			return 0, err
		}
	}
	if err := e.gateway.RedeemShares(vault.RedeemSharesRequest{
		Vault:       auction.Vault,
		Source:      req.FractionAccount,
		Destination: req.Destination,
		Amount:      req.Amount,
		Owner:       req.Holder,
	}); err != nil {
		return 0, fmt.Errorf("redeem shares: %w", err)
	}
	payment, err := RedeemPayment(remaining, req.Amount, supply)
	if err != nil {
		return 0, err
	}
	holder := req.Holder.Address()
	if auction.TreasuryClosed {
		e.emit(NewRedeemedEvent(auction, holder, req.Destination, req.Amount, 0))
		return 0, nil
	}
	signer := e.auctionSigner(auction)
	if err := e.ledger.Transfer(auction.PaymentTreasury, req.Destination, payment, signer); err != nil {
		return 0, fmt.Errorf("pay redemption: %w", err)
	}
	left, err := e.ledger.Balance(auction.PaymentTreasury)
	if err != nil {
		return 0, err
	}
	if left == 0 {
		if err := e.ledger.CloseAccount(auction.PaymentTreasury, holder, signer); err != nil {
			return 0, err
		}
		auction.TreasuryClosed = true
		if err := e.storeAuction(auction); err != nil {
			return 0, err
		}
	}
	e.emit(NewRedeemedEvent(auction, holder, req.Destination, req.Amount, payment))
	if auction.TreasuryClosed {
		e.emit(NewTreasuryClosedEvent(auction))
	}
	return payment, nil
}
