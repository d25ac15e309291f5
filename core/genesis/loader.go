package genesis

import (
	"context"
	"errors"
	"fmt"

	"vaultauction/core/types"
	"vaultauction/native/auction"
	"vaultauction/native/token"
	"vaultauction/native/vault"
)

// ErrAlreadyApplied is returned when the state already holds the genesis
// mints. Restarting a node over a persistent backend hits this path.
var ErrAlreadyApplied = errors.New("genesis: state already seeded")

// Provisioner exposes transactional access to the ledger and custody
// program. auction.Service satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, op string, fn func(l *token.Ledger, c *vault.Custody) error) error
	AuthorityAddress() types.Address
}

var _ Provisioner = (*auction.Service)(nil)

// Apply seeds state from spec in a single transaction. Records are created
// in file order so the resulting state is deterministic.
func Apply(ctx context.Context, p Provisioner, spec *Spec) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	auctionAuthority := p.AuthorityAddress()
	return p.Provision(ctx, "genesis", func(l *token.Ledger, c *vault.Custody) error {
		if len(spec.Mints) > 0 {
			if _, err := l.Mint(spec.Mints[0].address); err == nil {
				return ErrAlreadyApplied
			} else if !errors.Is(err, token.ErrMintNotFound) {
				return err
			}
		}
		for i, n := range spec.Native {
			if err := l.Fund(n.owner, n.Amount); err != nil {
				return fmt.Errorf("native[%d]: %w", i, err)
			}
		}
		for i, m := range spec.Mints {
			if _, err := l.CreateMint(m.address, m.authority, m.Decimals); err != nil {
				return fmt.Errorf("mints[%d]: %w", i, err)
			}
		}
		for i, a := range spec.Accounts {
			if err := openAccount(l, a); err != nil {
				return fmt.Errorf("accounts[%d]: %w", i, err)
			}
		}
		for i, pr := range spec.Pricing {
			record := &vault.Pricing{
				Address:          pr.address,
				PriceMint:        pr.priceMint,
				PricePerShare:    pr.PricePerShare,
				AllowedToCombine: pr.AllowedToCombine,
			}
			if err := c.PutPricing(record); err != nil {
				return fmt.Errorf("pricing[%d]: %w", i, err)
			}
		}
		for i, v := range spec.Vaults {
			if err := seedVault(l, c, v, auctionAuthority); err != nil {
				return fmt.Errorf("vaults[%d]: %w", i, err)
			}
		}
		return nil
	})
}

func openAccount(l *token.Ledger, a AccountSpec) error {
	if _, err := l.OpenAccount(a.address, a.mint, a.owner, types.NewSigner(a.owner)); err != nil {
		return err
	}
	if a.Amount == 0 {
		return nil
	}
	mint, err := l.Mint(a.mint)
	if err != nil {
		return err
	}
	return l.MintTo(a.mint, a.address, a.Amount, types.NewSigner(mint.Authority))
}

func seedVault(l *token.Ledger, c *vault.Custody, v VaultSpec, auctionAuthority types.Address) error {
	authority := types.NewSigner(v.authority)
	params := vault.CreateVaultParams{
		Vault:            v.address,
		FractionMint:     v.fractionMint,
		FractionTreasury: v.fractionTreasury,
		RedeemTreasury:   v.redeemTreasury,
		Pricing:          v.pricing,
		Authority:        v.authority,
		Decimals:         v.Decimals,
	}
	if _, err := c.CreateVault(params, authority); err != nil {
		return err
	}
	for j, b := range v.Boxes {
		src, err := l.Account(b.source)
		if err != nil {
			return fmt.Errorf("boxes[%d]: %w", j, err)
		}
		if _, err := c.AddToken(v.address, b.address, b.source, b.Amount, authority, types.NewSigner(src.Owner)); err != nil {
			return fmt.Errorf("boxes[%d]: %w", j, err)
		}
	}
	if err := c.Activate(v.address, v.Shares, authority); err != nil {
		return err
	}
	for j, d := range v.Distributions {
		if _, err := l.OpenAccount(d.destination, v.fractionMint, d.owner, types.NewSigner(d.owner)); err != nil {
			return fmt.Errorf("distributions[%d]: %w", j, err)
		}
		if err := c.DistributeShares(v.address, d.destination, d.Amount, authority); err != nil {
			return fmt.Errorf("distributions[%d]: %w", j, err)
		}
	}
	if v.HandToAuction {
		return c.SetAuthority(v.address, auctionAuthority, authority)
	}
	return nil
}
