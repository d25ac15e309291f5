package auction

import (
	"errors"
	"time"

	"vaultauction/core/events"
	"vaultauction/core/types"
	"vaultauction/native/token"
	"vaultauction/native/vault"
)

// TokenLedger is the fungible balance collaborator used by the engine.
type TokenLedger interface {
	Account(addr types.Address) (*token.Account, error)
	Balance(addr types.Address) (uint64, error)
	Supply(mint types.Address) (uint64, error)
	OpenAccount(addr, mint, owner types.Address, payer types.Signer) (*token.Account, error)
	Transfer(from, to types.Address, amount uint64, authority types.Signer) error
	CloseAccount(addr, destination types.Address, authority types.Signer) error
	ChargeDeposit(payer types.Signer) (uint64, error)
	Fund(owner types.Address, amount uint64) error
}

// VaultGateway is the custody program holding the auctioned assets. Calls
// run inside the caller's transaction.
type VaultGateway interface {
	Vault(addr types.Address) (*vault.Vault, error)
	Pricing(addr types.Address) (*vault.Pricing, error)
	Combine(req vault.CombineRequest) (uint64, error)
	Withdraw(req vault.WithdrawRequest) error
	RedeemShares(req vault.RedeemSharesRequest) error
}

// Engine runs the auction lifecycle against a single transaction's state.
// All collaborators must be bound to that same transaction so an operation
// either commits every effect or none.
type Engine struct {
	config  AuthorityConfig
	state   Storage
	ledger  TokenLedger
	gateway VaultGateway
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates an engine for the supplied program instance with a no-op
// emitter and the wall clock.
func NewEngine(config AuthorityConfig) *Engine {
	return &Engine{
		config:  config,
		emitter: events.NoopEmitter{},
		nowFn:   wallClock,
	}
}

func wallClock() uint64 { return uint64(time.Now().Unix()) }

// Config returns the program instance the engine acts for.
func (e *Engine) Config() AuthorityConfig { return e.config }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state Storage) { e.state = state }

// SetLedger configures the token ledger.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetGateway configures the vault custody program.
func (e *Engine) SetGateway(gateway VaultGateway) { e.gateway = gateway }

// SetNowFunc overrides the time source. Passing nil restores the wall clock.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = wallClock
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return wallClock()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.gateway == nil:
		return errNilGateway
	}
	return nil
}

// AuthorityAddress returns the derived authority of this program instance.
func (e *Engine) AuthorityAddress() types.Address {
	return AuthorityAddress(e.config.ProgramID)
}

// AuctionAddress returns the auction identity for vault.
func (e *Engine) AuctionAddress(vaultAddr types.Address) types.Address {
	return AuctionAddress(e.config.ProgramID, vaultAddr)
}

// BidAddress returns the bid identity of bidder on auction.
func (e *Engine) BidAddress(bidder, auction types.Address) types.Address {
	return BidAddress(e.config.ProgramID, bidder, auction)
}

// Derived signers are only ever minted here.
func (e *Engine) authoritySigner() types.Signer { return types.NewSigner(e.AuthorityAddress()) }

func (e *Engine) auctionSigner(a *Auction) types.Signer { return types.NewSigner(a.ID) }

func (e *Engine) bidSigner(b *Bid) types.Signer { return types.NewSigner(b.ID) }

// Init creates the program authority owned by signer.
func (e *Engine) Init(signer types.Signer) (*Authority, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if signer.Address().IsZero() {
		return nil, ErrInvalidOwner
	}
	if _, err := e.loadAuthority(); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, ErrNotInitialized) {
		return nil, err
	}
	authority := &Authority{
		Address: e.AuthorityAddress(),
		Owner:   signer.Address(),
	}
	if err := e.storeAuthority(authority); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(authority))
	return authority, nil
}

// SetOwner transfers administrative ownership of the authority.
func (e *Engine) SetOwner(signer types.Signer, newOwner types.Address) (*Authority, error) {
	authority, err := e.loadAuthority()
	if err != nil {
		return nil, err
	}
	if !signer.Signs(authority.Owner) {
		return nil, ErrNotAuthorityOwner
	}
	if newOwner.IsZero() {
		return nil, ErrInvalidOwner
	}
	previous := authority.Owner
	authority.Owner = newOwner
	if err := e.storeAuthority(authority); err != nil {
		return nil, err
	}
	e.emit(NewOwnerChangedEvent(authority, previous))
	return authority, nil
}

// CreateSettings registers a new immutable settings record. The facilitator
// fee bound is only enforced here.
func (e *Engine) CreateSettings(signer types.Signer, params SettingsParams) (*Settings, error) {
	authority, err := e.loadAuthority()
	if err != nil {
		return nil, err
	}
	if !signer.Signs(authority.Owner) {
		return nil, ErrNotAuthorityOwner
	}
	if params.FacilitatorFee > MaxFacilitatorFee {
		return nil, ErrInvalidFacilitatorFee
	}
	settings := &Settings{
		ID:              SettingsAddress(e.config.ProgramID, authority.Address, authority.NextSettingsNonce),
		Duration:        params.Duration,
		SoftClosePeriod: params.SoftClosePeriod,
		BidIncrement:    params.BidIncrement,
		FacilitatorFee:  params.FacilitatorFee,
		CreatedAt:       e.now(),
	}
	authority.NextSettingsNonce++
	if err := e.storeSettings(settings); err != nil {
		return nil, err
	}
	if err := e.storeAuthority(authority); err != nil {
		return nil, err
	}
	e.emit(NewSettingsCreatedEvent(settings))
	return settings, nil
}

// GetAuthority returns the program authority.
func (e *Engine) GetAuthority() (*Authority, error) { return e.loadAuthority() }

// GetSettings returns a settings record.
func (e *Engine) GetSettings(id types.Address) (*Settings, error) { return e.loadSettings(id) }

// GetAuction returns an auction record.
func (e *Engine) GetAuction(id types.Address) (*Auction, error) { return e.loadAuction(id) }

// GetBid returns bidder's live bid on auction.
func (e *Engine) GetBid(bidder, auction types.Address) (*Bid, error) {
	return e.loadBid(e.BidAddress(bidder, auction))
}

// Status reports the lifecycle status of an auction at the engine clock.
func (e *Engine) Status(id types.Address) (Status, error) {
	auction, err := e.loadAuction(id)
	if err != nil {
		return "", err
	}
	return auction.StatusAt(e.now()), nil
}
