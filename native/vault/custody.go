package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"vaultauction/core/types"
	"vaultauction/crypto"
	"vaultauction/native/token"
)

// Custody is the vault program: it holds deposited assets, issues fractions
// and implements the combine/redeem/withdraw contract consumed by the
// auction engine.
type Custody struct {
	store   Storage
	ledger  *token.Ledger
	program types.Address
}

// NewCustody binds the custody program to state and the token ledger.
func NewCustody(store Storage, ledger *token.Ledger, program types.Address) *Custody {
	return &Custody{store: store, ledger: ledger, program: program}
}

// Program returns the custody program identity.
func (c *Custody) Program() types.Address { return c.program }

// VaultPDA is the derived identity that owns a vault's token accounts.
func (c *Custody) VaultPDA(vault types.Address) types.Address {
	return crypto.Derive(c.program, "vault", vault)
}

func (c *Custody) vaultSigner(vault types.Address) types.Signer {
	return types.NewSigner(c.VaultPDA(vault))
}

// Vault loads a vault record.
func (c *Custody) Vault(addr types.Address) (*Vault, error) {
	v := new(Vault)
	ok, err := c.store.KVGet(prefixed(vaultPrefix, addr), v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

func (c *Custody) putVault(v *Vault) error {
	return c.store.KVPut(prefixed(vaultPrefix, v.Address), v)
}

// Box loads a safety deposit box.
func (c *Custody) Box(addr types.Address) (*SafetyDepositBox, error) {
	b := new(SafetyDepositBox)
	ok, err := c.store.KVGet(prefixed(boxPrefix, addr), b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBoxNotFound
	}
	return b, nil
}

// Pricing loads a pricing record.
func (c *Custody) Pricing(addr types.Address) (*Pricing, error) {
	p := new(Pricing)
	ok, err := c.store.KVGet(prefixed(pricingPrefix, addr), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPricingNotFound
	}
	return p, nil
}

// PutPricing stores the price tracker's latest valuation.
func (c *Custody) PutPricing(p *Pricing) error {
	if p == nil {
		return fmt.Errorf("vault: nil pricing record")
	}
	return c.store.KVPut(prefixed(pricingPrefix, p.Address), p)
}

// CreateVaultParams describes a new vault. The fraction mint and both
// treasuries are created by the call.
type CreateVaultParams struct {
	Vault            types.Address
	FractionMint     types.Address
	FractionTreasury types.Address
	RedeemTreasury   types.Address
	Pricing          types.Address
	Authority        types.Address
	Decimals         uint8
}

// CreateVault initialises an inactive vault whose redeem treasury holds the
// pricing record's mint.
func (c *Custody) CreateVault(params CreateVaultParams, payer types.Signer) (*Vault, error) {
	if _, err := c.Vault(params.Vault); err == nil {
		return nil, ErrVaultExists
	} else if !errors.Is(err, ErrVaultNotFound) {
		return nil, err
	}
	pricing, err := c.Pricing(params.Pricing)
	if err != nil {
		return nil, err
	}
	pda := c.VaultPDA(params.Vault)
	if _, err := c.ledger.CreateMint(params.FractionMint, pda, params.Decimals); err != nil {
		return nil, err
	}
	if _, err := c.ledger.OpenAccount(params.FractionTreasury, params.FractionMint, pda, payer); err != nil {
		return nil, err
	}
	if _, err := c.ledger.OpenAccount(params.RedeemTreasury, pricing.PriceMint, pda, payer); err != nil {
		return nil, err
	}
	v := &Vault{
		Address:                   params.Vault,
		FractionMint:              params.FractionMint,
		Authority:                 params.Authority,
		FractionTreasury:          params.FractionTreasury,
		RedeemTreasury:            params.RedeemTreasury,
		PricingLookup:             params.Pricing,
		AllowFurtherShareCreation: false,
		State:                     StateInactive,
	}
	if err := c.putVault(v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddToken deposits amount of source's mint into a new safety deposit box.
func (c *Custody) AddToken(vaultAddr, boxAddr, source types.Address, amount uint64, authority, depositor types.Signer) (*SafetyDepositBox, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	v, err := c.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if v.State != StateInactive {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	if !authority.Signs(v.Authority) {
		return nil, ErrUnauthorized
	}
	src, err := c.ledger.Account(source)
	if err != nil {
		return nil, err
	}
	storeAddr := crypto.Derive(c.program, "store", boxAddr)
	if _, err := c.ledger.OpenAccount(storeAddr, src.Mint, c.VaultPDA(vaultAddr), depositor); err != nil {
		return nil, err
	}
	if err := c.ledger.Transfer(source, storeAddr, amount, depositor); err != nil {
		return nil, err
	}
	box := &SafetyDepositBox{
		Address:   boxAddr,
		Vault:     vaultAddr,
		TokenMint: src.Mint,
		Store:     storeAddr,
		Order:     v.TokenTypeCount,
	}
	v.TokenTypeCount++
	if err := c.store.KVPut(prefixed(boxPrefix, boxAddr), box); err != nil {
		return nil, err
	}
	if err := c.putVault(v); err != nil {
		return nil, err
	}
	return box, nil
}

// Activate mints the fraction supply into the fraction treasury and opens
// the vault for trading.
func (c *Custody) Activate(vaultAddr types.Address, shares uint64, authority types.Signer) error {
	v, err := c.Vault(vaultAddr)
	if err != nil {
		return err
	}
	if v.State != StateInactive {
		return fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	if !authority.Signs(v.Authority) {
		return ErrUnauthorized
	}
	if err := c.ledger.MintTo(v.FractionMint, v.FractionTreasury, shares, c.vaultSigner(vaultAddr)); err != nil {
		return err
	}
	v.State = StateActive
	return c.putVault(v)
}

// DistributeShares moves fractions out of the fraction treasury.
func (c *Custody) DistributeShares(vaultAddr, destination types.Address, amount uint64, authority types.Signer) error {
	v, err := c.Vault(vaultAddr)
	if err != nil {
		return err
	}
	if v.State != StateActive {
		return fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	if !authority.Signs(v.Authority) {
		return ErrUnauthorized
	}
	return c.ledger.Transfer(v.FractionTreasury, destination, amount, c.vaultSigner(vaultAddr))
}

// SetAuthority hands control of the vault to a new authority.
func (c *Custody) SetAuthority(vaultAddr, newAuthority types.Address, authority types.Signer) error {
	v, err := c.Vault(vaultAddr)
	if err != nil {
		return err
	}
	if !authority.Signs(v.Authority) {
		return ErrUnauthorized
	}
	v.Authority = newAuthority
	return c.putVault(v)
}

func mulPrice(price, shares uint64) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(shares))
	if !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// Combine buys out the circulating fractions. The payer owes the per-share
// price for every fraction that is neither uncirculated nor already held in
// the payer's outstanding share account. Both of those holdings are burned,
// the price is locked for redemption and control passes to NewAuthority.
func (c *Custody) Combine(req CombineRequest) (uint64, error) {
	v, err := c.Vault(req.Vault)
	if err != nil {
		return 0, err
	}
	if v.State != StateActive {
		return 0, fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	if !req.Authority.Signs(v.Authority) {
		return 0, ErrUnauthorized
	}
	if v.PricingLookup != req.Pricing {
		return 0, ErrPricingMismatch
	}
	pricing, err := c.Pricing(req.Pricing)
	if err != nil {
		return 0, err
	}
	if !pricing.AllowedToCombine {
		return 0, ErrNotAllowedToCombine
	}
	paying, err := c.ledger.Account(req.PayingAccount)
	if err != nil {
		return 0, err
	}
	if paying.Mint != pricing.PriceMint {
		return 0, ErrPriceMintMismatch
	}
	supply, err := c.ledger.Supply(v.FractionMint)
	if err != nil {
		return 0, err
	}
	uncirculated, err := c.ledger.Balance(v.FractionTreasury)
	if err != nil {
		return 0, err
	}
	var outstanding uint64
	if !req.OutstandingShares.IsZero() {
		acc, err := c.ledger.Account(req.OutstandingShares)
		if err != nil {
			return 0, err
		}
		if acc.Mint != v.FractionMint {
			return 0, ErrFractionMintMismatch
		}
		outstanding = acc.Amount
	}
	if uncirculated+outstanding > supply {
		return 0, fmt.Errorf("vault: share accounting exceeds supply")
	}
	owed, err := mulPrice(pricing.PricePerShare, supply-uncirculated-outstanding)
	if err != nil {
		return 0, err
	}
	if err := c.ledger.Transfer(req.PayingAccount, v.RedeemTreasury, owed, req.Payer); err != nil {
		return 0, err
	}
	if outstanding > 0 {
		if err := c.ledger.Burn(req.OutstandingShares, outstanding, req.Payer); err != nil {
			return 0, err
		}
	}
	if uncirculated > 0 {
		if err := c.ledger.Burn(v.FractionTreasury, uncirculated, c.vaultSigner(req.Vault)); err != nil {
			return 0, err
		}
	}
	v.State = StateCombined
	v.LockedPricePerShare = pricing.PricePerShare
	v.Authority = req.NewAuthority
	if err := c.putVault(v); err != nil {
		return 0, err
	}
	return owed, nil
}

// RedeemShares burns amount fractions from source and pays the locked
// per-share price out of the redeem treasury.
func (c *Custody) RedeemShares(req RedeemSharesRequest) error {
	if req.Amount == 0 {
		return ErrInvalidAmount
	}
	v, err := c.Vault(req.Vault)
	if err != nil {
		return err
	}
	if v.State != StateCombined && v.State != StateDeactivated {
		return fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	src, err := c.ledger.Account(req.Source)
	if err != nil {
		return err
	}
	if src.Mint != v.FractionMint {
		return ErrFractionMintMismatch
	}
	payment, err := mulPrice(v.LockedPricePerShare, req.Amount)
	if err != nil {
		return err
	}
	if err := c.ledger.Burn(req.Source, req.Amount, req.Owner); err != nil {
		return err
	}
	return c.ledger.Transfer(v.RedeemTreasury, req.Destination, payment, c.vaultSigner(req.Vault))
}

// Withdraw releases amount from a safety deposit box. Once every box is
// empty the vault is deactivated.
func (c *Custody) Withdraw(req WithdrawRequest) error {
	v, err := c.Vault(req.Vault)
	if err != nil {
		return err
	}
	if v.State != StateCombined {
		return fmt.Errorf("%w: %s", ErrInvalidState, v.State)
	}
	if !req.Authority.Signs(v.Authority) {
		return ErrUnauthorized
	}
	box, err := c.Box(req.Box)
	if err != nil {
		return err
	}
	if box.Vault != req.Vault {
		return ErrBoxVaultMismatch
	}
	held, err := c.ledger.Balance(box.Store)
	if err != nil {
		return err
	}
	if held < req.Amount {
		return ErrInsufficientVaultContents
	}
	if err := c.ledger.Transfer(box.Store, req.Destination, req.Amount, c.vaultSigner(req.Vault)); err != nil {
		return err
	}
	if held == req.Amount && req.Amount > 0 {
		if v.TokenTypeCount > 0 {
			v.TokenTypeCount--
		}
		if v.TokenTypeCount == 0 {
			v.State = StateDeactivated
		}
		return c.putVault(v)
	}
	return nil
}
