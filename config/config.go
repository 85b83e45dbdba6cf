package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the kernel's single JSON configuration document.
type Config struct {
	// OurChain is this router/executor deployment's own chain ID.
	OurChain uint16 `json:"our_chain"`

	// ExecutorProgramIDHex is the 32-byte identity of the executor this router
	// forwards RequestExecution calls to, hex-encoded.
	ExecutorProgramIDHex string `json:"executor_program_id"`

	// QuoterImplementationIDHex is the 32-byte implementation identity this
	// deployment's locally-hosted quoter registers under in the router's
	// dispatch registry, hex-encoded.
	QuoterImplementationIDHex string `json:"quoter_implementation_id"`

	// Mnemonic is the BIP39 mnemonic the quoter updater and governance
	// signing keys are derived from.
	Mnemonic string `json:"mnemonic"`

	// Path to the SQLite database backing the chain-info/quote/registration
	// stores.
	DatabasePath string `json:"database_path"`

	// HTTP port for the read-only admin/observability surface.
	Port int `json:"port"`

	// Required password to access the admin surface.
	AdminPassword string `json:"admin_password"`

	// Optional Telegram bot token for operator alerts; empty disables the
	// ops bot entirely.
	TelegramToken string `json:"telegram_token"`

	// Telegram user IDs allowed to receive alerts and use the ops bot's
	// commands.
	OperatorUserIDs []int64 `json:"operator_user_ids"`

	// CacheTTLSeconds controls how long chain-info/quote-body reads stay
	// warm in the read-through cache in front of storage.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Mnemonic == "" {
		return fmt.Errorf("mnemonic is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin_password is required")
	}
	if c.ExecutorProgramIDHex == "" {
		return fmt.Errorf("executor_program_id is required")
	}
	if len(c.ExecutorProgramIDHex) != 64 {
		return fmt.Errorf("executor_program_id must be 32 bytes hex-encoded")
	}
	if c.QuoterImplementationIDHex == "" {
		return fmt.Errorf("quoter_implementation_id is required")
	}
	if len(c.QuoterImplementationIDHex) != 64 {
		return fmt.Errorf("quoter_implementation_id must be 32 bytes hex-encoded")
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 30
	}
	return nil
}

// IsOperator reports whether userID may use the ops bot's privileged
// commands.
func (c *Config) IsOperator(userID int64) bool {
	for _, id := range c.OperatorUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
