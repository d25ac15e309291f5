package auction

import "errors"

var (
	errNilState   = errors.New("auction engine: state not configured")
	errNilLedger  = errors.New("auction engine: token ledger not configured")
	errNilGateway = errors.New("auction engine: vault gateway not configured")
)

// Arithmetic.
var (
	ErrNumericalOverflow = errors.New("auction: numerical overflow")
)

// State preconditions.
var (
	ErrAlreadyInitialized      = errors.New("auction: authority already initialized")
	ErrNotInitialized          = errors.New("auction: authority not initialized")
	ErrSettingsNotFound        = errors.New("auction: settings not found")
	ErrAuctionNotFound         = errors.New("auction: auction not found")
	ErrAuctionExists           = errors.New("auction: vault already has an auction")
	ErrBidNotFound             = errors.New("auction: bid not found")
	ErrBidAlreadyExists        = errors.New("auction: bidder already holds a live bid on this auction")
	ErrAuctionHasEnded         = errors.New("auction: auction has ended")
	ErrAuctionHasNotEnded      = errors.New("auction: auction has not ended")
	ErrFeeAlreadyDelivered     = errors.New("auction: fee already delivered")
	ErrFeeHasNotBeenDelivered  = errors.New("auction: fee has not been delivered")
	ErrVaultNotInActiveState   = errors.New("auction: vault is not in the active state")
	ErrVaultCannotBeCombined   = errors.New("auction: vault cannot currently be combined")

	// ErrCombineAccountingMismatch is returned when the gateway's reported
	// consumption disagrees with the observed paying account delta.
	ErrCombineAccountingMismatch = errors.New("auction: combine consumed amount does not match paying account delta")
)

// Authorization.
var (
	ErrNotAuthorityOwner               = errors.New("auction: signer is not the authority owner")
	ErrInvalidOwner                    = errors.New("auction: owner must be a non-zero address")
	ErrNotAuctionWinner                = errors.New("auction: signer is not the auction winner")
	ErrVaultNotOwnedByAuctionAuthority = errors.New("auction: vault is not owned by the auction authority")
	ErrPriceAccountMismatch            = errors.New("auction: pricing record does not match the vault")
	ErrPaymentMintMismatch             = errors.New("auction: token account does not hold the payment mint")
	ErrPayingAccountNotOwned           = errors.New("auction: paying account is not owned by the bidder")
	ErrFeeAccountNotOwned              = errors.New("auction: fee account is not owned by the authority owner")
)

// Economic validation.
var (
	ErrBidLessThanReservePrice = errors.New("auction: bid is less than the reserve price")
	ErrBidTooLow               = errors.New("auction: bid is below the minimum increment")
	ErrInsufficientFunds       = errors.New("auction: insufficient funds")
	ErrInvalidFacilitatorFee   = errors.New("auction: facilitator fee exceeds maximum")
	ErrCannotWithdrawTopBid    = errors.New("auction: cannot withdraw the top bid")
	ErrInvalidAmount           = errors.New("auction: amount must be positive")
)

// ErrorCategory groups engine failures for callers that only care about the
// kind of rejection.
type ErrorCategory string

const (
	CategoryArithmetic    ErrorCategory = "arithmetic"
	CategoryState         ErrorCategory = "state"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryEconomic      ErrorCategory = "economic"
	CategoryUnknown       ErrorCategory = "unknown"
)

type errorInfo struct {
	err      error
	name     string
	category ErrorCategory
}

var errorTable = []errorInfo{
	{ErrNumericalOverflow, "NumericalOverflow", CategoryArithmetic},

	{ErrAlreadyInitialized, "AlreadyInitialized", CategoryState},
	{ErrNotInitialized, "NotInitialized", CategoryState},
	{ErrSettingsNotFound, "SettingsNotFound", CategoryState},
	{ErrAuctionNotFound, "AuctionNotFound", CategoryState},
	{ErrAuctionExists, "AuctionExists", CategoryState},
	{ErrBidNotFound, "BidNotFound", CategoryState},
	{ErrBidAlreadyExists, "BidAlreadyExists", CategoryState},
	{ErrAuctionHasEnded, "AuctionHasEnded", CategoryState},
	{ErrAuctionHasNotEnded, "AuctionHasNotEnded", CategoryState},
	{ErrFeeAlreadyDelivered, "FeeAlreadyDelivered", CategoryState},
	{ErrFeeHasNotBeenDelivered, "FeeHasNotBeenDelivered", CategoryState},
	{ErrVaultNotInActiveState, "VaultNotInActiveState", CategoryState},
	{ErrVaultCannotBeCombined, "VaultCannotCurrentlyBeCombined", CategoryState},
	{ErrCombineAccountingMismatch, "CombineAccountingMismatch", CategoryState},

	{ErrNotAuthorityOwner, "NotAuthorityOwner", CategoryAuthorization},
	{ErrInvalidOwner, "InvalidOwner", CategoryAuthorization},
	{ErrNotAuctionWinner, "NotAuctionWinner", CategoryAuthorization},
	{ErrVaultNotOwnedByAuctionAuthority, "VaultNotOwnedByAuctionAuthority", CategoryAuthorization},
	{ErrPriceAccountMismatch, "PriceAccountDoesNotMatchVaultAccount", CategoryAuthorization},
	{ErrPaymentMintMismatch, "PaymentMintMismatch", CategoryAuthorization},
	{ErrPayingAccountNotOwned, "PayingAccountNotOwned", CategoryAuthorization},
	{ErrFeeAccountNotOwned, "FeeAccountNotOwned", CategoryAuthorization},

	{ErrBidLessThanReservePrice, "BidLessThanReservePrice", CategoryEconomic},
	{ErrBidTooLow, "BidTooLow", CategoryEconomic},
	{ErrInsufficientFunds, "InsufficientFunds", CategoryEconomic},
	{ErrInvalidFacilitatorFee, "InvalidFacilitatorFee", CategoryEconomic},
	{ErrCannotWithdrawTopBid, "CannotWithdrawTopBid", CategoryEconomic},
	{ErrInvalidAmount, "InvalidAmount", CategoryEconomic},
}

func lookupError(err error) (errorInfo, bool) {
	if err == nil {
		return errorInfo{}, false
	}
	for _, info := range errorTable {
		if errors.Is(err, info.err) {
			return info, true
		}
	}
	return errorInfo{}, false
}

// Category classifies err. Errors raised by collaborators (token ledger,
// vault custody) and infrastructure report CategoryUnknown.
func Category(err error) ErrorCategory {
	if info, ok := lookupError(err); ok {
		return info.category
	}
	return CategoryUnknown
}

// Name returns the stable identifier of an engine error, or the empty string
// when err is not one.
func Name(err error) string {
	if info, ok := lookupError(err); ok {
		return info.name
	}
	return ""
}
