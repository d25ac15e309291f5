package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vaultauction/core/events"
	"vaultauction/core/types"
	"vaultauction/crypto"
	"vaultauction/indexer"
	"vaultauction/native/auction"
)

type signerParams struct {
	Signer string `json:"signer"`
}

type setOwnerParams struct {
	Signer   string `json:"signer"`
	NewOwner string `json:"newOwner"`
}

type createSettingsParams struct {
	Signer          string `json:"signer"`
	Duration        uint64 `json:"duration"`
	SoftClosePeriod uint64 `json:"softClosePeriod"`
	BidIncrement    uint64 `json:"bidIncrement"`
	FacilitatorFee  uint64 `json:"facilitatorFee"`
}

type startParams struct {
	Signer          string `json:"signer"`
	Vault           string `json:"vault"`
	Settings        string `json:"settings"`
	Pricing         string `json:"pricing"`
	PayingAccount   string `json:"payingAccount"`
	FractionAccount string `json:"fractionAccount"`
	Amount          uint64 `json:"amount"`
}

type placeBidParams struct {
	Signer        string `json:"signer"`
	Auction       string `json:"auction"`
	PayingAccount string `json:"payingAccount"`
	Amount        uint64 `json:"amount"`
}

type withdrawBidParams struct {
	Signer      string `json:"signer"`
	Auction     string `json:"auction"`
	Destination string `json:"destination"`
}

type endParams struct {
	Auction    string `json:"auction"`
	FeeAccount string `json:"feeAccount"`
}

type claimParams struct {
	Signer           string `json:"signer"`
	Auction          string `json:"auction"`
	SafetyDepositBox string `json:"safetyDepositBox"`
	Destination      string `json:"destination"`
	Amount           uint64 `json:"amount"`
}

type redeemParams struct {
	Signer          string `json:"signer"`
	Auction         string `json:"auction"`
	FractionAccount string `json:"fractionAccount"`
	Destination     string `json:"destination"`
	Amount          uint64 `json:"amount"`
}

type idParams struct {
	ID string `json:"id"`
}

type bidParams struct {
	Bidder  string `json:"bidder"`
	Auction string `json:"auction"`
}

type vaultParams struct {
	Vault string `json:"vault"`
}

type accountParams struct {
	Account string `json:"account"`
}

type eventsParams struct {
	Type    string `json:"type"`
	Auction string `json:"auction"`
	After   uint64 `json:"after"`
	Limit   int    `json:"limit"`
}

type authorityJSON struct {
	Address           string `json:"address"`
	Owner             string `json:"owner"`
	NextSettingsNonce uint64 `json:"nextSettingsNonce"`
}

type settingsJSON struct {
	ID              string `json:"id"`
	Duration        uint64 `json:"duration"`
	SoftClosePeriod uint64 `json:"softClosePeriod"`
	BidIncrement    uint64 `json:"bidIncrement"`
	FacilitatorFee  uint64 `json:"facilitatorFee"`
	CreatedAt       uint64 `json:"createdAt"`
}

type auctionJSON struct {
	ID              string `json:"id"`
	Vault           string `json:"vault"`
	Settings        string `json:"settings"`
	PaymentMint     string `json:"paymentMint"`
	PaymentTreasury string `json:"paymentTreasury"`
	StartTimestamp  uint64 `json:"startTimestamp"`
	EndTimestamp    uint64 `json:"endTimestamp"`
	TopBid          uint64 `json:"topBid"`
	TopBidder       string `json:"topBidder"`
	ReservePrice    uint64 `json:"reservePrice"`
	FeePaid         bool   `json:"feePaid"`
	TreasuryClosed  bool   `json:"treasuryClosed"`
	Status          string `json:"status,omitempty"`
}

type bidJSON struct {
	ID            string `json:"id"`
	Bidder        string `json:"bidder"`
	Auction       string `json:"auction"`
	Amount        uint64 `json:"amount"`
	Timestamp     uint64 `json:"timestamp"`
	Withdrawable  bool   `json:"withdrawable"`
	EscrowAccount string `json:"escrowAccount"`
}

type amountJSON struct {
	Amount uint64 `json:"amount"`
}

type addressJSON struct {
	Address string `json:"address"`
}

func formatAuthority(a *auction.Authority) authorityJSON {
	return authorityJSON{Address: a.Address.Hex(), Owner: a.Owner.Hex(), NextSettingsNonce: a.NextSettingsNonce}
}

func formatSettings(s *auction.Settings) settingsJSON {
	return settingsJSON{
		ID:              s.ID.Hex(),
		Duration:        s.Duration,
		SoftClosePeriod: s.SoftClosePeriod,
		BidIncrement:    s.BidIncrement,
		FacilitatorFee:  s.FacilitatorFee,
		CreatedAt:       s.CreatedAt,
	}
}

func formatAuction(a *auction.Auction, status auction.Status) auctionJSON {
	return auctionJSON{
		ID:              a.ID.Hex(),
		Vault:           a.Vault.Hex(),
		Settings:        a.Settings.Hex(),
		PaymentMint:     a.PaymentMint.Hex(),
		PaymentTreasury: a.PaymentTreasury.Hex(),
		StartTimestamp:  a.StartTimestamp,
		EndTimestamp:    a.EndTimestamp,
		TopBid:          a.TopBid,
		TopBidder:       a.TopBidder.Hex(),
		ReservePrice:    a.ReservePrice,
		FeePaid:         a.FeePaid,
		TreasuryClosed:  a.TreasuryClosed,
		Status:          string(status),
	}
}

func formatBid(b *auction.Bid) bidJSON {
	return bidJSON{
		ID:            b.ID.Hex(),
		Bidder:        b.Bidder.Hex(),
		Auction:       b.Auction.Hex(),
		Amount:        b.Amount,
		Timestamp:     b.Timestamp,
		Withdrawable:  b.Withdrawable,
		EscrowAccount: b.EscrowAccount.Hex(),
	}
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (types.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.Address{}, invalidParams(field + " required")
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return types.Address{}, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return addr, nil
}

// addresses parses field/value pairs in order, stopping at the first error.
func addresses(pairs ...string) ([]types.Address, error) {
	out := make([]types.Address, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		addr, err := parseAddress(pairs[i], pairs[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// signer resolves who the request speaks for. With authentication enabled
// the token subject is authoritative and a named signer must match it.
func (s *Server) signer(ctx context.Context, raw string) (types.Signer, error) {
	if s.auth != nil {
		caller, ok := callerFrom(ctx)
		if !ok {
			return types.Signer{}, &RPCError{Code: codeUnauthorized, Message: errMissingBearer.Error()}
		}
		if strings.TrimSpace(raw) != "" {
			named, err := parseAddress("signer", raw)
			if err != nil {
				return types.Signer{}, err
			}
			if named != caller {
				return types.Signer{}, &RPCError{Code: codeUnauthorized, Message: "signer does not match token subject"}
			}
		}
		return types.NewSigner(caller), nil
	}
	addr, err := parseAddress("signer", raw)
	if err != nil {
		return types.Signer{}, err
	}
	return types.NewSigner(addr), nil
}

func (s *Server) registerMethods() map[string]methodFunc {
	return map[string]methodFunc{
		"auction_init":           s.handleInit,
		"auction_setOwner":       s.handleSetOwner,
		"auction_createSettings": s.handleCreateSettings,
		"auction_start":          s.handleStart,
		"auction_placeBid":       s.handlePlaceBid,
		"auction_withdrawBid":    s.handleWithdrawBid,
		"auction_end":            s.handleEnd,
		"auction_claim":          s.handleClaim,
		"auction_redeem":         s.handleRedeem,
		"auction_get":            s.handleGetAuction,
		"auction_getBid":         s.handleGetBid,
		"auction_getSettings":    s.handleGetSettings,
		"auction_getAuthority":   s.handleGetAuthority,
		"auction_address":        s.handleAuctionAddress,
		"auction_events":         s.handleEvents,
		"token_balance":          s.handleBalance,
	}
}

func (s *Server) handleInit(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p signerParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	a, err := s.svc.Init(ctx, signer)
	if err != nil {
		return nil, err
	}
	return formatAuthority(a), nil
}

func (s *Server) handleSetOwner(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setOwnerParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	newOwner, err := parseAddress("newOwner", p.NewOwner)
	if err != nil {
		return nil, err
	}
	a, err := s.svc.SetOwner(ctx, signer, newOwner)
	if err != nil {
		return nil, err
	}
	return formatAuthority(a), nil
}

func (s *Server) handleCreateSettings(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p createSettingsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	settings, err := s.svc.CreateSettings(ctx, signer, auction.SettingsParams{
		Duration:        p.Duration,
		SoftClosePeriod: p.SoftClosePeriod,
		BidIncrement:    p.BidIncrement,
		FacilitatorFee:  p.FacilitatorFee,
	})
	if err != nil {
		return nil, err
	}
	return formatSettings(settings), nil
}

func (s *Server) handleStart(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p startParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	addrs, err := addresses(
		"vault", p.Vault,
		"settings", p.Settings,
		"pricing", p.Pricing,
		"payingAccount", p.PayingAccount,
	)
	if err != nil {
		return nil, err
	}
	// Without a fraction account the opener surrenders no shares.
	var fractions types.Address
	if strings.TrimSpace(p.FractionAccount) != "" {
		if fractions, err = parseAddress("fractionAccount", p.FractionAccount); err != nil {
			return nil, err
		}
	}
	a, err := s.svc.Start(ctx, auction.StartRequest{
		Bidder:          signer,
		Vault:           addrs[0],
		Settings:        addrs[1],
		Pricing:         addrs[2],
		PayingAccount:   addrs[3],
		FractionAccount: fractions,
		Amount:          p.Amount,
	})
	if err != nil {
		return nil, err
	}
	return formatAuction(a, auction.StatusActive), nil
}

func (s *Server) handlePlaceBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p placeBidParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	addrs, err := addresses("auction", p.Auction, "payingAccount", p.PayingAccount)
	if err != nil {
		return nil, err
	}
	bid, err := s.svc.PlaceBid(ctx, auction.PlaceBidRequest{
		Bidder:        signer,
		Auction:       addrs[0],
		PayingAccount: addrs[1],
		Amount:        p.Amount,
	})
	if err != nil {
		return nil, err
	}
	return formatBid(bid), nil
}

func (s *Server) handleWithdrawBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p withdrawBidParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	addrs, err := addresses("auction", p.Auction, "destination", p.Destination)
	if err != nil {
		return nil, err
	}
	amount, err := s.svc.WithdrawBid(ctx, auction.WithdrawBidRequest{Bidder: signer, Auction: addrs[0], Destination: addrs[1]})
	if err != nil {
		return nil, err
	}
	return amountJSON{Amount: amount}, nil
}

func (s *Server) handleEnd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p endParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	addrs, err := addresses("auction", p.Auction, "feeAccount", p.FeeAccount)
	if err != nil {
		return nil, err
	}
	fee, err := s.svc.End(ctx, auction.EndRequest{Auction: addrs[0], FeeAccount: addrs[1]})
	if err != nil {
		return nil, err
	}
	return amountJSON{Amount: fee}, nil
}

func (s *Server) handleClaim(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p claimParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	addrs, err := addresses("auction", p.Auction, "safetyDepositBox", p.SafetyDepositBox, "destination", p.Destination)
	if err != nil {
		return nil, err
	}
	err = s.svc.Claim(ctx, auction.ClaimRequest{
		Bidder:           signer,
		Auction:          addrs[0],
		SafetyDepositBox: addrs[1],
		Destination:      addrs[2],
		Amount:           p.Amount,
	})
	if err != nil {
		return nil, err
	}
	return amountJSON{Amount: p.Amount}, nil
}

func (s *Server) handleRedeem(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p redeemParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	signer, err := s.signer(ctx, p.Signer)
	if err != nil {
		return nil, err
	}
	addrs, err := addresses("auction", p.Auction, "fractionAccount", p.FractionAccount, "destination", p.Destination)
	if err != nil {
		return nil, err
	}
	paid, err := s.svc.Redeem(ctx, auction.RedeemRequest{
		Holder:          signer,
		Auction:         addrs[0],
		FractionAccount: addrs[1],
		Destination:     addrs[2],
		Amount:          p.Amount,
	})
	if err != nil {
		return nil, err
	}
	return amountJSON{Amount: paid}, nil
}

func (s *Server) handleGetAuction(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := parseAddress("id", p.ID)
	if err != nil {
		return nil, err
	}
	a, status, err := s.svc.Auction(ctx, id)
	if err != nil {
		return nil, err
	}
	return formatAuction(a, status), nil
}

func (s *Server) handleGetBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p bidParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	addrs, err := addresses("bidder", p.Bidder, "auction", p.Auction)
	if err != nil {
		return nil, err
	}
	bid, err := s.svc.Bid(ctx, addrs[0], addrs[1])
	if err != nil {
		return nil, err
	}
	return formatBid(bid), nil
}

func (s *Server) handleGetSettings(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id, err := parseAddress("id", p.ID)
	if err != nil {
		return nil, err
	}
	settings, err := s.svc.Settings(ctx, id)
	if err != nil {
		return nil, err
	}
	return formatSettings(settings), nil
}

func (s *Server) handleGetAuthority(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if err := decodeParams(raw, &struct{}{}); err != nil {
		return nil, err
	}
	a, err := s.svc.Authority(ctx)
	if err != nil {
		return nil, err
	}
	return formatAuthority(a), nil
}

func (s *Server) handleAuctionAddress(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p vaultParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	vault, err := parseAddress("vault", p.Vault)
	if err != nil {
		return nil, err
	}
	return addressJSON{Address: s.svc.AuctionAddress(vault).Hex()}, nil
}

func (s *Server) handleBalance(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p accountParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return nil, err
	}
	bal, err := s.svc.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	return amountJSON{Amount: bal}, nil
}

func (s *Server) handleEvents(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p eventsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	filter := indexer.Filter{
		Type:    strings.TrimSpace(p.Type),
		Auction: strings.ToLower(strings.TrimSpace(p.Auction)),
		After:   p.After,
		Limit:   p.Limit,
	}
	if s.archive != nil {
		return s.archive.Query(ctx, filter)
	}
	return recentEvents(s.recorder, filter), nil
}

// recentEvents applies filter to the in-memory window. Sequences count from
// the oldest retained event.
func recentEvents(r *events.Recorder, f indexer.Filter) []indexer.Entry {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	out := make([]indexer.Entry, 0)
	for i, evt := range r.Events() {
		seq := uint64(i + 1)
		if seq <= f.After || (f.Type != "" && evt.EventType() != f.Type) {
			continue
		}
		entry := indexer.Entry{Sequence: seq, Type: evt.EventType()}
		if payload, ok := evt.(events.Payload); ok && payload.Event() != nil {
			entry.Attributes = payload.Event().Attributes
		}
		if f.Auction != "" && entry.Attributes["auction"] != f.Auction {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out
}
