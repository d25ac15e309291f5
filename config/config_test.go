package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendLevelDB, cfg.Storage.Backend)
	require.FileExists(t, path)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ProgramID, again.ProgramID)
	require.Equal(t, cfg.VaultProgramID, again.VaultProgramID)
	require.NoError(t, Validate(again))

	program, err := again.Program()
	require.NoError(t, err)
	require.False(t, program.IsZero())
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/auction"
RPCAddress = "127.0.0.1:9000"
StorageDeposit = 25
GenesisFile = "genesis.yaml"

[Log]
Env = "prod"
Level = "debug"
File = "/var/log/auctiond.log"
MaxSizeMB = 50

[Storage]
Backend = "memory"

[RPC]
JWTSecret = "0123456789abcdef0123"
RateLimit = 20.0

[Indexer]
Driver = "sqlite"
DSN = "file:events.db"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/auction", cfg.DataDir)
	require.Equal(t, uint64(25), cfg.StorageDeposit)
	require.Equal(t, "genesis.yaml", cfg.GenesisFile)
	require.Equal(t, "prod", cfg.Log.Env)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
	require.Equal(t, BackendMemory, cfg.Storage.Backend)
	require.Equal(t, 21, cfg.RPC.RateBurst)
	require.Equal(t, 1024, cfg.RPC.EventHistory)
	require.Equal(t, IndexerSQLite, cfg.Indexer.Driver)
	require.Equal(t, filepath.Join("/var/lib/auction", "state"), cfg.LevelDBPath())
	require.Equal(t, filepath.Join("/var/lib/auction", "state.db"), cfg.BoltPath())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bootnodes = [\"x\"]\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown field")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad program", func(c *Config) { c.ProgramID = "nope" }, "ProgramID"},
		{"same programs", func(c *Config) { c.VaultProgramID = c.ProgramID }, "must differ"},
		{"backend", func(c *Config) { c.Storage.Backend = "rocks" }, "unknown backend"},
		{"short secret", func(c *Config) { c.RPC.JWTSecret = "short" }, "JWTSecret"},
		{"negative rate", func(c *Config) { c.RPC.RateLimit = -1 }, "rate limits"},
		{"indexer dsn", func(c *Config) { c.Indexer.Driver = IndexerPostgres }, "DSN required"},
		{"indexer driver", func(c *Config) { c.Indexer.Driver = "mysql"; c.Indexer.DSN = "x" }, "unknown driver"},
		{"telemetry", func(c *Config) { c.Telemetry.Traces = true }, "Endpoint required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.ErrorContains(t, Validate(cfg), tc.want)
		})
	}
	require.NoError(t, Validate(Default()))

	bolt := Default()
	bolt.Storage.Backend = BackendBolt
	require.NoError(t, Validate(bolt))
}

func TestDevnetConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "examples", "devnet", "config.toml"))
	require.NoError(t, err)
	require.Equal(t, IndexerPostgres, cfg.Indexer.Driver)
	require.Equal(t, BackendMemory, cfg.Storage.Backend)
}
