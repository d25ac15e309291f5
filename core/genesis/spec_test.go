package genesis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultauction/core/host"
	"vaultauction/core/state"
	"vaultauction/core/types"
	"vaultauction/native/auction"
	"vaultauction/native/token"
	"vaultauction/native/vault"
	"vaultauction/storage"
)

const sampleGenesis = `
native:
  - owner: "label:curator"
    amount: 1000
  - owner: "label:alice"
    amount: 1000
  - owner: "label:holder"
    amount: 1000
mints:
  - address: "label:usd"
    authority: "label:curator"
  - address: "label:art"
    authority: "label:curator"
accounts:
  - address: "label:alice-usd"
    mint: "label:usd"
    owner: "label:alice"
    amount: 500
  - address: "label:curator-art"
    mint: "label:art"
    owner: "label:curator"
    amount: 1
pricing:
  - address: "label:pricing"
    priceMint: "label:usd"
    pricePerShare: 2
    allowedToCombine: true
vaults:
  - address: "label:vault"
    fractionMint: "label:vault-fractions"
    fractionTreasury: "label:vault-fraction-treasury"
    redeemTreasury: "label:vault-redeem-treasury"
    pricing: "label:pricing"
    authority: "label:curator"
    shares: 100
    boxes:
      - address: "label:box"
        source: "label:curator-art"
        amount: 1
    distributions:
      - destination: "label:holder-shares"
        owner: "label:holder"
        amount: 40
    handToAuction: true
`

func label(t *testing.T, name string) types.Address {
	t.Helper()
	addr, err := ResolveAddress("label:" + name)
	require.NoError(t, err)
	return addr
}

func newService(t *testing.T) *auction.Service {
	t.Helper()
	h := host.New(state.NewStore(storage.NewMemDB()))
	var program, vaultProgram types.Address
	program[0], vaultProgram[0] = 0xA0, 0xB0
	return auction.NewService(h, auction.ServiceConfig{
		Authority:      auction.AuthorityConfig{ProgramID: program},
		VaultProgram:   vaultProgram,
		StorageDeposit: 1,
	})
}

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis), 0o644))
	spec, err := Load(path)
	require.NoError(t, err)
	require.Len(t, spec.Vaults, 1)

	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, Apply(ctx, svc, spec))

	bal, err := svc.Balance(ctx, label(t, "alice-usd"))
	require.NoError(t, err)
	require.Equal(t, uint64(500), bal)

	held, err := svc.Balance(ctx, label(t, "holder-shares"))
	require.NoError(t, err)
	require.Equal(t, uint64(40), held)

	var seeded *vault.Vault
	require.NoError(t, svc.Provision(ctx, "inspect", func(_ *token.Ledger, c *vault.Custody) error {
		seeded, err = c.Vault(label(t, "vault"))
		return err
	}))
	require.Equal(t, vault.StateActive, seeded.State)
	require.Equal(t, svc.AuthorityAddress(), seeded.Authority)
	require.Equal(t, uint8(1), seeded.TokenTypeCount)

	require.ErrorIs(t, Apply(ctx, svc, spec), ErrAlreadyApplied)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "validators: []\n", "decode genesis"},
		{"bad address", "native:\n  - owner: \"0x12\"\n    amount: 1\n", "native[0].owner"},
		{"unknown mint", "accounts:\n  - address: \"label:a\"\n    mint: \"label:m\"\n    owner: \"label:o\"\n", "unknown mint"},
		{"duplicate mint", "mints:\n  - address: \"label:m\"\n    authority: \"label:a\"\n  - address: \"label:m\"\n    authority: \"label:a\"\n", "duplicate mint"},
		{"zero shares", "vaults:\n  - address: \"label:v\"\n    fractionMint: \"label:f\"\n    fractionTreasury: \"label:t\"\n    redeemTreasury: \"label:r\"\n    pricing: \"label:p\"\n    authority: \"label:a\"\n", "shares must be positive"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestResolveAddress(t *testing.T) {
	a, err := ResolveAddress("label:alice")
	require.NoError(t, err)
	b, err := ResolveAddress(a.Hex())
	require.NoError(t, err)
	require.Equal(t, a, b)

	// Precomposed and decomposed forms of "café" name the same account.
	composed, err := ResolveAddress("label:caf\u00e9")
	require.NoError(t, err)
	decomposed, err := ResolveAddress("label:cafe\u0301")
	require.NoError(t, err)
	require.Equal(t, composed, decomposed)

	_, err = ResolveAddress("label:")
	require.Error(t, err)
	_, err = ResolveAddress("  ")
	require.Error(t, err)
}

func TestDevnetGenesis(t *testing.T) {
	spec, err := Load(filepath.Join("..", "..", "examples", "devnet", "genesis.yaml"))
	require.NoError(t, err)
	require.NoError(t, Apply(context.Background(), newService(t), spec))
}
