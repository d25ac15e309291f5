package auction

import (
	"context"
	"errors"
	"testing"

	"vaultauction/core/events"
	"vaultauction/core/host"
	"vaultauction/core/state"
	"vaultauction/core/types"
	"vaultauction/native/token"
	"vaultauction/native/vault"
	"vaultauction/storage"
)

func TestServiceLifecycleOverLevelDB(t *testing.T) {
	db, err := storage.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	now := uint64(5_000)
	recorder := events.NewRecorder(0)
	h := host.New(state.NewStore(db),
		host.WithEmitter(recorder),
		host.WithClock(host.ClockFunc(func() uint64 { return now })))
	program := newTestAddress(0xA0)
	svc := NewService(h, ServiceConfig{
		Authority:      AuthorityConfig{ProgramID: program},
		VaultProgram:   newTestAddress(0xB0),
		StorageDeposit: 5,
	})
	ctx := context.Background()

	var (
		priceMint    = newTestAddress(0x10)
		vaultAddr    = newTestAddress(0x20)
		pricing      = newTestAddress(0x22)
		fractionMint = newTestAddress(0x23)
		alicePay     = newTestAddress(0x30)
		bobPay       = newTestAddress(0x31)
		feeAccount   = newTestAddress(0x33)
		holderShares = newTestAddress(0x36)
		holderPay    = newTestAddress(0x34)
	)
	owner := types.NewSigner(ownerAddr)
	alice := types.NewSigner(aliceAddr)
	bob := types.NewSigner(bobAddr)

	if _, err := svc.Init(ctx, owner); err != nil {
		t.Fatalf("init: %v", err)
	}
	settings, err := svc.CreateSettings(ctx, owner, SettingsParams{Duration: 100, SoftClosePeriod: 10, BidIncrement: 0, FacilitatorFee: 100_000_000})
	if err != nil {
		t.Fatalf("create settings: %v", err)
	}
	err = svc.Provision(ctx, "provision", func(l *token.Ledger, c *vault.Custody) error {
		curator := types.NewSigner(curatorAddr)
		for _, addr := range []types.Address{curatorAddr, aliceAddr, bobAddr, ownerAddr, holderAAddr} {
			if err := l.Fund(addr, 1_000); err != nil {
				return err
			}
		}
		if _, err := l.CreateMint(priceMint, curatorAddr, 0); err != nil {
			return err
		}
		for acc, who := range map[types.Address]types.Address{alicePay: aliceAddr, bobPay: bobAddr, feeAccount: ownerAddr, holderPay: holderAAddr} {
			if _, err := l.OpenAccount(acc, priceMint, who, curator); err != nil {
				return err
			}
		}
		if err := l.MintTo(priceMint, alicePay, 1_000, curator); err != nil {
			return err
		}
		if err := l.MintTo(priceMint, bobPay, 1_000, curator); err != nil {
			return err
		}
		if err := c.PutPricing(&vault.Pricing{Address: pricing, PriceMint: priceMint, PricePerShare: 0, AllowedToCombine: true}); err != nil {
			return err
		}
		if _, err := c.CreateVault(vault.CreateVaultParams{
			Vault: vaultAddr, FractionMint: fractionMint, FractionTreasury: newTestAddress(0x24),
			RedeemTreasury: newTestAddress(0x25), Pricing: pricing, Authority: curatorAddr,
		}, curator); err != nil {
			return err
		}
		if err := c.Activate(vaultAddr, 10, curator); err != nil {
			return err
		}
		if _, err := l.OpenAccount(holderShares, fractionMint, holderAAddr, curator); err != nil {
			return err
		}
		if err := c.DistributeShares(vaultAddr, holderShares, 10, curator); err != nil {
			return err
		}
		return c.SetAuthority(vaultAddr, svc.AuthorityAddress(), curator)
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	auction, err := svc.Start(ctx, StartRequest{
		Bidder: alice, Vault: vaultAddr, Settings: settings.ID, Pricing: pricing, PayingAccount: alicePay, Amount: 300,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if auction.ID != svc.AuctionAddress(vaultAddr) {
		t.Fatalf("unexpected auction id")
	}
	before := len(recorder.Events())
	if _, err := svc.PlaceBid(ctx, PlaceBidRequest{Bidder: bob, Auction: auction.ID, PayingAccount: bobPay, Amount: 2_000}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(recorder.Events()) != before {
		t.Fatalf("aborted operation emitted events")
	}
	if _, err := svc.PlaceBid(ctx, PlaceBidRequest{Bidder: bob, Auction: auction.ID, PayingAccount: bobPay, Amount: 500}); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if _, err := svc.WithdrawBid(ctx, WithdrawBidRequest{Bidder: alice, Auction: auction.ID, Destination: alicePay}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	now += 100
	_, status, err := svc.Auction(ctx, auction.ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if status != StatusEnded {
		t.Fatalf("expected ended status, got %s", status)
	}
	fee, err := svc.End(ctx, EndRequest{Auction: auction.ID, FeeAccount: feeAccount})
	if err != nil || fee != 50 {
		t.Fatalf("end: fee %d err %v", fee, err)
	}
	payment, err := svc.Redeem(ctx, RedeemRequest{Holder: types.NewSigner(holderAAddr), Auction: auction.ID, FractionAccount: holderShares, Destination: holderPay, Amount: 10})
	if err != nil || payment != 450 {
		t.Fatalf("redeem: payment %d err %v", payment, err)
	}
	if got, err := svc.Balance(ctx, alicePay); err != nil || got != 1_000 {
		t.Fatalf("alice balance %d err %v", got, err)
	}
	if got, err := svc.Balance(ctx, holderPay); err != nil || got != 450 {
		t.Fatalf("holder balance %d err %v", got, err)
	}
	a, status, err := svc.Auction(ctx, auction.ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if status != StatusSettled || !a.TreasuryClosed {
		t.Fatalf("expected settled auction with closed treasury, got %s %+v", status, a)
	}

	var deposits uint64
	err = h.View(ctx, func(tx *state.Tx) error {
		_, l, _ := svc.Bind(tx, nil)
		var err error
		deposits, err = l.NativeBalance(aliceAddr)
		return err
	})
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	// Alice paid for the treasury and her bid pair; only the bid pair came back.
	if deposits != 1_000-5 {
		t.Fatalf("expected alice native balance 995, got %d", deposits)
	}
}
