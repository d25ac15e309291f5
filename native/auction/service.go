package auction

import (
	"context"

	"vaultauction/core/events"
	"vaultauction/core/host"
	"vaultauction/core/state"
	"vaultauction/core/types"
	"vaultauction/native/token"
	"vaultauction/native/vault"
)

// ServiceConfig wires a program instance to its collaborators.
type ServiceConfig struct {
	Authority      AuthorityConfig
	VaultProgram   types.Address
	StorageDeposit uint64
}

// Service runs each engine operation as one host transaction. The engine,
// token ledger and custody program are rebuilt per transaction so every
// effect lands in the same atomic write set.
type Service struct {
	host *host.Host
	cfg  ServiceConfig
}

// NewService binds the auction program to a host.
func NewService(h *host.Host, cfg ServiceConfig) *Service {
	return &Service{host: h, cfg: cfg}
}

// Config returns the service wiring.
func (s *Service) Config() ServiceConfig { return s.cfg }

// Bind constructs the engine and its collaborators over tx.
func (s *Service) Bind(tx *state.Tx, emitter events.Emitter) (*Engine, *token.Ledger, *vault.Custody) {
	ledger := token.NewLedger(tx)
	ledger.SetStorageDeposit(s.cfg.StorageDeposit)
	custody := vault.NewCustody(tx, ledger, s.cfg.VaultProgram)
	engine := NewEngine(s.cfg.Authority)
	engine.SetState(tx)
	engine.SetLedger(ledger)
	engine.SetGateway(custody)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(s.host.Now)
	return engine, ledger, custody
}

func execute[T any](ctx context.Context, s *Service, op string, fn func(e *Engine) (T, error)) (T, error) {
	var out T
	err := s.host.Execute(ctx, op, func(ctx context.Context, tx *state.Tx, emitter events.Emitter) error {
		engine, _, _ := s.Bind(tx, emitter)
		result, err := fn(engine)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func view[T any](ctx context.Context, s *Service, fn func(e *Engine, l *token.Ledger, c *vault.Custody) (T, error)) (T, error) {
	var out T
	err := s.host.View(ctx, func(tx *state.Tx) error {
		engine, ledger, custody := s.Bind(tx, nil)
		result, err := fn(engine, ledger, custody)
		out = result
		return err
	})
	return out, err
}

// Init creates the program authority.
func (s *Service) Init(ctx context.Context, signer types.Signer) (*Authority, error) {
	return execute(ctx, s, "init", func(e *Engine) (*Authority, error) { return e.Init(signer) })
}

// SetOwner transfers authority ownership.
func (s *Service) SetOwner(ctx context.Context, signer types.Signer, newOwner types.Address) (*Authority, error) {
	return execute(ctx, s, "set_owner", func(e *Engine) (*Authority, error) { return e.SetOwner(signer, newOwner) })
}

// CreateSettings registers auction parameters.
func (s *Service) CreateSettings(ctx context.Context, signer types.Signer, params SettingsParams) (*Settings, error) {
	return execute(ctx, s, "create_settings", func(e *Engine) (*Settings, error) { return e.CreateSettings(signer, params) })
}

// Start opens an auction.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Auction, error) {
	return execute(ctx, s, "start", func(e *Engine) (*Auction, error) { return e.Start(req) })
}

// PlaceBid submits a bid.
func (s *Service) PlaceBid(ctx context.Context, req PlaceBidRequest) (*Bid, error) {
	return execute(ctx, s, "place_bid", func(e *Engine) (*Bid, error) { return e.PlaceBid(req) })
}

// WithdrawBid releases an outbid escrow and returns the amount drained.
func (s *Service) WithdrawBid(ctx context.Context, req WithdrawBidRequest) (uint64, error) {
	return execute(ctx, s, "withdraw_bid", func(e *Engine) (uint64, error) { return e.WithdrawBid(req) })
}

// End settles the facilitator fee and returns it.
func (s *Service) End(ctx context.Context, req EndRequest) (uint64, error) {
	return execute(ctx, s, "end", func(e *Engine) (uint64, error) { return e.End(req) })
}

// Claim releases vault contents to the winner.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) error {
	_, err := execute(ctx, s, "claim", func(e *Engine) (struct{}, error) { return struct{}{}, e.Claim(req) })
	return err
}

// Redeem exchanges fractions for proceeds and returns the treasury payment.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (uint64, error) {
	return execute(ctx, s, "redeem", func(e *Engine) (uint64, error) { return e.Redeem(req) })
}

// Authority returns the program authority.
func (s *Service) Authority(ctx context.Context) (*Authority, error) {
	return view(ctx, s, func(e *Engine, _ *token.Ledger, _ *vault.Custody) (*Authority, error) { return e.GetAuthority() })
}

// Settings returns a settings record.
func (s *Service) Settings(ctx context.Context, id types.Address) (*Settings, error) {
	return view(ctx, s, func(e *Engine, _ *token.Ledger, _ *vault.Custody) (*Settings, error) { return e.GetSettings(id) })
}

// Auction returns an auction record together with its status.
func (s *Service) Auction(ctx context.Context, id types.Address) (*Auction, Status, error) {
	a, err := view(ctx, s, func(e *Engine, _ *token.Ledger, _ *vault.Custody) (*Auction, error) { return e.GetAuction(id) })
	if err != nil {
		return nil, "", err
	}
	return a, a.StatusAt(s.host.Now()), nil
}

// Bid returns bidder's live bid on auction.
func (s *Service) Bid(ctx context.Context, bidder, auction types.Address) (*Bid, error) {
	return view(ctx, s, func(e *Engine, _ *token.Ledger, _ *vault.Custody) (*Bid, error) { return e.GetBid(bidder, auction) })
}

// Balance returns a token account balance.
func (s *Service) Balance(ctx context.Context, account types.Address) (uint64, error) {
	return view(ctx, s, func(_ *Engine, l *token.Ledger, _ *vault.Custody) (uint64, error) { return l.Balance(account) })
}

// AuctionAddress returns the auction identity for vault.
func (s *Service) AuctionAddress(vaultAddr types.Address) types.Address {
	return AuctionAddress(s.cfg.Authority.ProgramID, vaultAddr)
}

// AuthorityAddress returns the identity vaults must be handed to before they
// can be auctioned.
func (s *Service) AuthorityAddress() types.Address {
	return AuthorityAddress(s.cfg.Authority.ProgramID)
}

// Provision runs fn against the token ledger and custody program in one
// transaction. Operators use it to seed mints, accounts and vaults.
func (s *Service) Provision(ctx context.Context, op string, fn func(l *token.Ledger, c *vault.Custody) error) error {
	return s.host.Execute(ctx, op, func(ctx context.Context, tx *state.Tx, emitter events.Emitter) error {
		_, ledger, custody := s.Bind(tx, emitter)
		return fn(ledger, custody)
	})
}
