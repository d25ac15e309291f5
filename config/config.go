package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultauction/core/types"
	"vaultauction/crypto"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"

	IndexerDisabled = ""
	IndexerSQLite   = "sqlite"
	IndexerPostgres = "postgres"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	RPCAddress     string `toml:"RPCAddress"`
	ProgramID      string `toml:"ProgramID"`
	VaultProgramID string `toml:"VaultProgramID"`
	StorageDeposit uint64 `toml:"StorageDeposit"`
	GenesisFile    string `toml:"GenesisFile"`

	Log       LogConfig       `toml:"Log"`
	Storage   StorageConfig   `toml:"Storage"`
	RPC       RPCConfig       `toml:"RPC"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Indexer   IndexerConfig   `toml:"Indexer"`
}

type LogConfig struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

type StorageConfig struct {
	Backend string `toml:"Backend"`
}

// RPCConfig controls the JSON-RPC listener. An empty JWTSecret disables
// bearer authentication; a zero RateLimit disables throttling.
type RPCConfig struct {
	JWTSecret         string  `toml:"JWTSecret"`
	JWTIssuer         string  `toml:"JWTIssuer"`
	RateLimit         float64 `toml:"RateLimit"`
	RateBurst         int     `toml:"RateBurst"`
	ReadHeaderTimeout int     `toml:"ReadHeaderTimeout"`
	EventHistory      int     `toml:"EventHistory"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers"`
}

type IndexerConfig struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultProgramID(name string) string {
	return types.BytesToAddress(ethcrypto.Keccak256([]byte(name))).Hex()
}

// Default returns the configuration written for a fresh data directory.
func Default() *Config {
	cfg := &Config{
		DataDir:        "./auction-data",
		RPCAddress:     ":8545",
		ProgramID:      defaultProgramID("vaultauction.auction"),
		VaultProgramID: defaultProgramID("vaultauction.vault"),
		Log: LogConfig{
			Env:        "local",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Storage: StorageConfig{Backend: BackendLevelDB},
		RPC: RPCConfig{
			ReadHeaderTimeout: 5,
			EventHistory:      1024,
		},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = def.RPCAddress
	}
	if strings.TrimSpace(c.ProgramID) == "" {
		c.ProgramID = def.ProgramID
	}
	if strings.TrimSpace(c.VaultProgramID) == "" {
		c.VaultProgramID = def.VaultProgramID
	}
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = def.Log.Level
	}
	if c.RPC.ReadHeaderTimeout == 0 {
		c.RPC.ReadHeaderTimeout = def.RPC.ReadHeaderTimeout
	}
	if c.RPC.EventHistory == 0 {
		c.RPC.EventHistory = def.RPC.EventHistory
	}
	if c.RPC.RateLimit > 0 && c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = int(c.RPC.RateLimit) + 1
	}
}

// Program returns the parsed auction program identity.
func (c *Config) Program() (types.Address, error) {
	return crypto.ParseAddress(c.ProgramID)
}

// VaultProgram returns the parsed custody program identity.
func (c *Config) VaultProgram() (types.Address, error) {
	return crypto.ParseAddress(c.VaultProgramID)
}

// LevelDBPath is where the persistent backend keeps its files.
func (c *Config) LevelDBPath() string {
	return filepath.Join(c.DataDir, "state")
}

// BoltPath is the single-file location used by the bolt backend.
func (c *Config) BoltPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
