package config

import (
	"fmt"
	"strings"
)

// Validate checks ranges and cross-field constraints.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if _, err := c.Program(); err != nil {
		return fmt.Errorf("config: ProgramID: %w", err)
	}
	if _, err := c.VaultProgram(); err != nil {
		return fmt.Errorf("config: VaultProgramID: %w", err)
	}
	if c.ProgramID == c.VaultProgramID {
		return fmt.Errorf("config: ProgramID and VaultProgramID must differ")
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if c.RPC.RateLimit < 0 || c.RPC.RateBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.ReadHeaderTimeout < 0 {
		return fmt.Errorf("rpc: ReadHeaderTimeout must not be negative")
	}
	if c.RPC.EventHistory < 0 {
		return fmt.Errorf("rpc: EventHistory must not be negative")
	}
	if secret := c.RPC.JWTSecret; secret != "" && len(strings.TrimSpace(secret)) < 16 {
		return fmt.Errorf("rpc: JWTSecret must be at least 16 characters")
	}
	switch c.Indexer.Driver {
	case IndexerDisabled:
	case IndexerSQLite, IndexerPostgres:
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN required for driver %q", c.Indexer.Driver)
		}
	default:
		return fmt.Errorf("indexer: unknown driver %q", c.Indexer.Driver)
	}
	if c.Telemetry.Traces || c.Telemetry.Metrics {
		if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
			return fmt.Errorf("telemetry: Endpoint required when exporting")
		}
	}
	return nil
}
