package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// PINs are never part of the configuration: they come with each request or from PromptForPIN.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	SolanaRPCURL      string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	USDCMint          string        `envconfig:"USDC_MINT" default:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
	Commitment        string        `envconfig:"SOLANA_COMMITMENT" default:"confirmed"`
	TransferTimeout   time.Duration `envconfig:"TRANSFER_TIMEOUT" default:"30s"`
	ConfirmTimeout    time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"60s"`
	AwaitConfirmation bool          `envconfig:"AWAIT_CONFIRMATION" default:"true"`

	Backend       string `envconfig:"BACKEND" default:"bolt"`
	DataDir       string `envconfig:"DATA_DIR" default:"./data"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	TransferRateLimit int `envconfig:"TRANSFER_RATE_LIMIT" default:"10"`
	TransferRateBurst int `envconfig:"TRANSFER_RATE_BURST" default:"3"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables and validates it.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads and validates a Config without touching the global instance.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetSolanaRPCURL returns Solana RPC URL from configuration
func GetSolanaRPCURL() string {
	return Get().SolanaRPCURL
}

// GetUSDCMint returns the USDC mint address from configuration
func GetUSDCMint() string {
	return Get().USDCMint
}

// GetBackendConfig returns the persistence settings from configuration
func GetBackendConfig() backend.Config {
	return Get().BackendConfig()
}

// BackendConfig maps the persistence settings onto backend.Config.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		Kind:          c.Backend,
		DataDir:       c.DataDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// Validate checks values envconfig cannot check by itself.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case backend.KindFile, backend.KindBolt, backend.KindBadger, backend.KindSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for backend %q", c.Backend)
		}
	case backend.KindRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q: use file, bolt, badger, sqlite or redis", c.Backend)
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unknown SOLANA_COMMITMENT %q", c.Commitment)
	}

	if c.TransferTimeout <= 0 {
		return errors.New("TRANSFER_TIMEOUT must be positive")
	}
	if c.AwaitConfirmation && c.ConfirmTimeout <= 0 {
		return errors.New("CONFIRM_TIMEOUT must be positive when AWAIT_CONFIRMATION is set")
	}
	if c.TransferRateLimit <= 0 || c.TransferRateBurst <= 0 {
		return errors.New("TRANSFER_RATE_LIMIT and TRANSFER_RATE_BURST must be positive")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q: use text or json", c.LogFormat)
	}
	return nil
}

// SetupLogging configures the global logrus logger from the configuration.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// PromptForPIN prompts the user for a transaction PIN in the terminal.
// The PIN is read without echoing (hidden input) and checked against the PIN format.
// Caller must zero the returned slice after use for security.
func PromptForPIN(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter the PIN")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to read PIN: %w", err)
	}
	if err := common.ValidatePin(raw); err != nil {
		clear(raw)
		return nil, err
	}

	pin := make([]byte, len(raw))
	copy(pin, raw)
	clear(raw)
	return pin, nil
}
