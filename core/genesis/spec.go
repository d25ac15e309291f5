package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"vaultauction/core/types"
	"vaultauction/crypto"
)

// labelPrefix marks an address written as a human label. The address is the
// keccak256 hash of the NFC-normalised label text.
const labelPrefix = "label:"

// Spec seeds a fresh state with native balances, mints, token accounts and
// fractional vaults ready to be auctioned.
type Spec struct {
	Native   []NativeSpec  `yaml:"native"`
	Mints    []MintSpec    `yaml:"mints"`
	Accounts []AccountSpec `yaml:"accounts"`
	Pricing  []PricingSpec `yaml:"pricing"`
	Vaults   []VaultSpec   `yaml:"vaults"`
}

type NativeSpec struct {
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`

	owner types.Address
}

type MintSpec struct {
	Address   string `yaml:"address"`
	Authority string `yaml:"authority"`
	Decimals  uint8  `yaml:"decimals"`

	address   types.Address
	authority types.Address
}

// AccountSpec opens a token account. A positive Amount is minted into it by
// the mint authority.
type AccountSpec struct {
	Address string `yaml:"address"`
	Mint    string `yaml:"mint"`
	Owner   string `yaml:"owner"`
	Amount  uint64 `yaml:"amount"`

	address types.Address
	mint    types.Address
	owner   types.Address
}

type PricingSpec struct {
	Address          string `yaml:"address"`
	PriceMint        string `yaml:"priceMint"`
	PricePerShare    uint64 `yaml:"pricePerShare"`
	AllowedToCombine bool   `yaml:"allowedToCombine"`

	address   types.Address
	priceMint types.Address
}

// VaultSpec creates, fills and activates a vault. When HandToAuction is set
// the vault authority is transferred to the auction program authority once
// shares are distributed.
type VaultSpec struct {
	Address          string             `yaml:"address"`
	FractionMint     string             `yaml:"fractionMint"`
	FractionTreasury string             `yaml:"fractionTreasury"`
	RedeemTreasury   string             `yaml:"redeemTreasury"`
	Pricing          string             `yaml:"pricing"`
	Authority        string             `yaml:"authority"`
	Decimals         uint8              `yaml:"decimals"`
	Shares           uint64             `yaml:"shares"`
	Boxes            []BoxSpec          `yaml:"boxes"`
	Distributions    []DistributionSpec `yaml:"distributions"`
	HandToAuction    bool               `yaml:"handToAuction"`

	address          types.Address
	fractionMint     types.Address
	fractionTreasury types.Address
	redeemTreasury   types.Address
	pricing          types.Address
	authority        types.Address
}

type BoxSpec struct {
	Address string `yaml:"address"`
	Source  string `yaml:"source"`
	Amount  uint64 `yaml:"amount"`

	address types.Address
	source  types.Address
}

// DistributionSpec opens a fraction account for Owner and moves Amount
// shares into it from the fraction treasury.
type DistributionSpec struct {
	Destination string `yaml:"destination"`
	Owner       string `yaml:"owner"`
	Amount      uint64 `yaml:"amount"`

	destination types.Address
	owner       types.Address
}

// Load reads and validates a YAML genesis file.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML genesis document. Unknown fields are rejected.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ResolveAddress parses a hex or bech32 address, or hashes a label written
// as "label:<text>".
func ResolveAddress(raw string) (types.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.Address{}, fmt.Errorf("address must not be empty")
	}
	if label, ok := strings.CutPrefix(trimmed, labelPrefix); ok {
		if label == "" {
			return types.Address{}, fmt.Errorf("empty address label")
		}
		// NFC so visually identical labels derive the same address.
		return types.BytesToAddress(ethcrypto.Keccak256([]byte(norm.NFC.String(label)))), nil
	}
	return crypto.ParseAddress(trimmed)
}

type resolver struct {
	err error
}

func (r *resolver) addr(field, raw string) types.Address {
	if r.err != nil {
		return types.Address{}
	}
	addr, err := ResolveAddress(raw)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", field, err)
	}
	return addr
}

func (s *Spec) validate() error {
	r := &resolver{}
	for i := range s.Native {
		n := &s.Native[i]
		n.owner = r.addr(fmt.Sprintf("native[%d].owner", i), n.Owner)
	}
	mints := make(map[types.Address]struct{}, len(s.Mints))
	for i := range s.Mints {
		m := &s.Mints[i]
		m.address = r.addr(fmt.Sprintf("mints[%d].address", i), m.Address)
		m.authority = r.addr(fmt.Sprintf("mints[%d].authority", i), m.Authority)
		if r.err == nil {
			if _, dup := mints[m.address]; dup {
				return fmt.Errorf("mints[%d]: duplicate mint %s", i, m.Address)
			}
			mints[m.address] = struct{}{}
		}
	}
	accounts := make(map[types.Address]struct{}, len(s.Accounts))
	for i := range s.Accounts {
		a := &s.Accounts[i]
		a.address = r.addr(fmt.Sprintf("accounts[%d].address", i), a.Address)
		a.mint = r.addr(fmt.Sprintf("accounts[%d].mint", i), a.Mint)
		a.owner = r.addr(fmt.Sprintf("accounts[%d].owner", i), a.Owner)
		if r.err == nil {
			if _, dup := accounts[a.address]; dup {
				return fmt.Errorf("accounts[%d]: duplicate account %s", i, a.Address)
			}
			accounts[a.address] = struct{}{}
			if _, ok := mints[a.mint]; !ok {
				return fmt.Errorf("accounts[%d]: unknown mint %s", i, a.Mint)
			}
		}
	}
	for i := range s.Pricing {
		p := &s.Pricing[i]
		p.address = r.addr(fmt.Sprintf("pricing[%d].address", i), p.Address)
		p.priceMint = r.addr(fmt.Sprintf("pricing[%d].priceMint", i), p.PriceMint)
		if r.err == nil {
			if _, ok := mints[p.priceMint]; !ok {
				return fmt.Errorf("pricing[%d]: unknown price mint %s", i, p.PriceMint)
			}
		}
	}
	for i := range s.Vaults {
		v := &s.Vaults[i]
		prefix := fmt.Sprintf("vaults[%d]", i)
		v.address = r.addr(prefix+".address", v.Address)
		v.fractionMint = r.addr(prefix+".fractionMint", v.FractionMint)
		v.fractionTreasury = r.addr(prefix+".fractionTreasury", v.FractionTreasury)
		v.redeemTreasury = r.addr(prefix+".redeemTreasury", v.RedeemTreasury)
		v.pricing = r.addr(prefix+".pricing", v.Pricing)
		v.authority = r.addr(prefix+".authority", v.Authority)
		if r.err == nil && v.Shares == 0 {
			return fmt.Errorf("%s: shares must be positive", prefix)
		}
		var distributed uint64
		for j := range v.Distributions {
			d := &v.Distributions[j]
			d.destination = r.addr(fmt.Sprintf("%s.distributions[%d].destination", prefix, j), d.Destination)
			d.owner = r.addr(fmt.Sprintf("%s.distributions[%d].owner", prefix, j), d.Owner)
			if d.Amount > v.Shares-distributed {
				return fmt.Errorf("%s: distributions exceed %d shares", prefix, v.Shares)
			}
			distributed += d.Amount
		}
		for j := range v.Boxes {
			b := &v.Boxes[j]
			b.address = r.addr(fmt.Sprintf("%s.boxes[%d].address", prefix, j), b.Address)
			b.source = r.addr(fmt.Sprintf("%s.boxes[%d].source", prefix, j), b.Source)
			if r.err == nil && b.Amount == 0 {
				return fmt.Errorf("%s.boxes[%d]: amount must be positive", prefix, j)
			}
		}
	}
	return r.err
}
