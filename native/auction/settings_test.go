package auction

import (
	"errors"
	"fmt"
	"testing"

	"vaultauction/core/events"
	"vaultauction/core/state"
	"vaultauction/core/types"
	"vaultauction/storage"
)

func newAdminEngine(t *testing.T) (*Engine, *events.Buffer) {
	t.Helper()
	tx := state.NewStore(storage.NewMemDB()).Begin()
	t.Cleanup(tx.Discard)
	buf := &events.Buffer{}
	e := NewEngine(AuthorityConfig{ProgramID: newTestAddress(0xA0)})
	e.SetState(tx)
	e.SetEmitter(buf)
	e.SetNowFunc(func() uint64 { return 42 })
	return e, buf
}

func TestInitAndSetOwner(t *testing.T) {
	e, buf := newAdminEngine(t)
	owner := types.NewSigner(ownerAddr)
	if _, err := e.GetAuthority(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	authority, err := e.Init(owner)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if authority.Address != AuthorityAddress(newTestAddress(0xA0)) || authority.Owner != ownerAddr {
		t.Fatalf("unexpected authority: %+v", authority)
	}
	if _, err := e.Init(owner); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if _, err := e.SetOwner(types.NewSigner(aliceAddr), aliceAddr); !errors.Is(err, ErrNotAuthorityOwner) {
		t.Fatalf("expected ErrNotAuthorityOwner, got %v", err)
	}
	if _, err := e.SetOwner(owner, types.ZeroAddress); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
	if _, err := e.SetOwner(owner, aliceAddr); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if _, err := e.CreateSettings(owner, SettingsParams{Duration: 10}); !errors.Is(err, ErrNotAuthorityOwner) {
		t.Fatalf("expected previous owner to lose control, got %v", err)
	}
	if _, err := e.CreateSettings(types.NewSigner(aliceAddr), SettingsParams{Duration: 10}); err != nil {
		t.Fatalf("new owner create settings: %v", err)
	}
	got := buf.Events()
	want := []string{EventTypeInitialized, EventTypeOwnerChanged, EventTypeSettingsCreated}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].EventType() != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i].EventType())
		}
	}
	payload, ok := got[1].(events.Payload)
	if !ok {
		t.Fatalf("expected payload event")
	}
	if payload.Event().Attributes["owner"] != aliceAddr.Hex() {
		t.Fatalf("unexpected owner attribute: %v", payload.Event().Attributes)
	}
}

func TestCreateSettings(t *testing.T) {
	e, _ := newAdminEngine(t)
	owner := types.NewSigner(ownerAddr)
	if _, err := e.Init(owner); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := e.CreateSettings(owner, SettingsParams{FacilitatorFee: MaxFacilitatorFee + 1}); !errors.Is(err, ErrInvalidFacilitatorFee) {
		t.Fatalf("expected ErrInvalidFacilitatorFee, got %v", err)
	}
	first, err := e.CreateSettings(owner, SettingsParams{Duration: 100, SoftClosePeriod: 5, BidIncrement: 1, FacilitatorFee: MaxFacilitatorFee})
	if err != nil {
		t.Fatalf("create settings at maximum fee: %v", err)
	}
	second, err := e.CreateSettings(owner, SettingsParams{Duration: 200})
	if err != nil {
		t.Fatalf("create second settings: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct settings identities")
	}
	loaded, err := e.GetSettings(first.ID)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if *loaded != *first || loaded.CreatedAt != 42 {
		t.Fatalf("unexpected stored settings: %+v", loaded)
	}
	authority, err := e.GetAuthority()
	if err != nil {
		t.Fatalf("load authority: %v", err)
	}
	if authority.NextSettingsNonce != 2 {
		t.Fatalf("expected nonce 2, got %d", authority.NextSettingsNonce)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err      error
		category ErrorCategory
		name     string
	}{
		{ErrNumericalOverflow, CategoryArithmetic, "NumericalOverflow"},
		{fmt.Errorf("wrapped: %w", ErrAuctionHasEnded), CategoryState, "AuctionHasEnded"},
		{ErrNotAuctionWinner, CategoryAuthorization, "NotAuctionWinner"},
		{ErrBidTooLow, CategoryEconomic, "BidTooLow"},
		{errors.New("other"), CategoryUnknown, ""},
	}
	for _, tc := range tests {
		if got := Category(tc.err); got != tc.category {
			t.Fatalf("%v: expected category %s, got %s", tc.err, tc.category, got)
		}
		if got := Name(tc.err); got != tc.name {
			t.Fatalf("%v: expected name %q, got %q", tc.err, tc.name, got)
		}
	}
}
