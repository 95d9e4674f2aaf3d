package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

const (
	DefaultHttpBindAddress = "localhost:1323"
	DefaultBackupInterval  = 6 * time.Hour
	DefaultBackupKeep      = 5
	DefaultVacuumInterval  = time.Hour
	DefaultChainID         = 31337
)

// Config contains everything a router node needs to boot its chain, deploy
// the router and serve the API.
type Config struct {
	Environment sdklogging.LogLevel
	Logger      sdklogging.Logger `json:"-"`

	DbPath    string
	InMemory  bool
	BackupDir string
	// zero disables the periodic job
	BackupInterval time.Duration
	BackupKeep     int
	VacuumInterval time.Duration

	HttpBindAddress string
	JwtSecret       []byte `json:"-"`
	SentryDsn       string

	ChainID       *big.Int
	RouterAddress common.Address
	WrappedNative common.Address
	Permit2       common.Address

	Router  RouterConfig
	Genesis GenesisConfig
}

type RouterConfig struct {
	Owner              common.Address
	Pauser             common.Address
	FeeCollector       common.Address
	Signers            []common.Address
	FeeRate            uint64
	ImplementationHash common.Hash
}

type GenesisConfig struct {
	Balances map[common.Address]*big.Int
	Tokens   []GenesisToken
}

type GenesisToken struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
	// zero means anyone can mint
	Minter   common.Address
	Balances map[common.Address]*big.Int
}

// These are read from configPath
type ConfigRaw struct {
	Environment     sdklogging.LogLevel `yaml:"environment"`
	DbPath          string              `yaml:"db_path"`
	InMemory        bool                `yaml:"in_memory"`
	BackupDir       string              `yaml:"backup_dir"`
	BackupInterval  string              `yaml:"backup_interval"`
	BackupKeep      int                 `yaml:"backup_keep"`
	VacuumInterval  string              `yaml:"vacuum_interval"`
	HttpBindAddress string              `yaml:"http_bind_address"`
	JwtSecret       string              `yaml:"jwt_secret"`
	SentryDsn       string              `yaml:"sentry_dsn"`

	Chain struct {
		ChainID       int64  `yaml:"chain_id"`
		Router        string `yaml:"router_address"`
		WrappedNative string `yaml:"wrapped_native_address"`
		Permit2       string `yaml:"permit2_address"`
	} `yaml:"chain"`

	Router struct {
		Owner              string   `yaml:"owner"`
		Pauser             string   `yaml:"pauser"`
		FeeCollector       string   `yaml:"fee_collector"`
		Signers            []string `yaml:"signers"`
		FeeRate            uint64   `yaml:"fee_rate"`
		ImplementationHash string   `yaml:"implementation_hash"`
	} `yaml:"router"`

	Genesis struct {
		Balances map[string]string `yaml:"balances"`
		Tokens   []struct {
			Address  string            `yaml:"address"`
			Name     string            `yaml:"name"`
			Symbol   string            `yaml:"symbol"`
			Decimals uint8             `yaml:"decimals"`
			Minter   string            `yaml:"minter"`
			Balances map[string]string `yaml:"balances"`
		} `yaml:"tokens"`
	} `yaml:"genesis"`
}

// NewConfig parses the yaml file at configFilePath.
func NewConfig(configFilePath string) (*Config, error) {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from yaml content.
func Parse(data []byte) (*Config, error) {
	var raw ConfigRaw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw.Environment == "" {
		raw.Environment = sdklogging.Development
	}

	logger, err := sdklogging.NewZapLogger(raw.Environment)
	if err != nil {
		return nil, err
	}

	c, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	c.Logger = logger

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (raw *ConfigRaw) toConfig() (*Config, error) {
	c := &Config{
		Environment:     raw.Environment,
		DbPath:          raw.DbPath,
		InMemory:        raw.InMemory,
		BackupDir:       raw.BackupDir,
		BackupInterval:  DefaultBackupInterval,
		BackupKeep:      raw.BackupKeep,
		VacuumInterval:  DefaultVacuumInterval,
		HttpBindAddress: raw.HttpBindAddress,
		JwtSecret:       []byte(raw.JwtSecret),
		SentryDsn:       raw.SentryDsn,
		ChainID:         big.NewInt(raw.Chain.ChainID),
	}

	if c.HttpBindAddress == "" {
		c.HttpBindAddress = DefaultHttpBindAddress
	}
	if c.BackupKeep == 0 {
		c.BackupKeep = DefaultBackupKeep
	}
	if raw.Chain.ChainID == 0 {
		c.ChainID = big.NewInt(DefaultChainID)
	}

	var err error
	if raw.BackupInterval != "" {
		if c.BackupInterval, err = time.ParseDuration(raw.BackupInterval); err != nil {
			return nil, fmt.Errorf("config: invalid backup_interval: %w", err)
		}
	}
	if raw.VacuumInterval != "" {
		if c.VacuumInterval, err = time.ParseDuration(raw.VacuumInterval); err != nil {
			return nil, fmt.Errorf("config: invalid vacuum_interval: %w", err)
		}
	}

	if c.RouterAddress, err = parseAddress("chain.router_address", raw.Chain.Router, true); err != nil {
		return nil, err
	}
	if c.WrappedNative, err = parseAddress("chain.wrapped_native_address", raw.Chain.WrappedNative, true); err != nil {
		return nil, err
	}
	if c.Permit2, err = parseAddress("chain.permit2_address", raw.Chain.Permit2, true); err != nil {
		return nil, err
	}

	if c.Router.Owner, err = parseAddress("router.owner", raw.Router.Owner, true); err != nil {
		return nil, err
	}
	if c.Router.Pauser, err = parseAddress("router.pauser", raw.Router.Pauser, false); err != nil {
		return nil, err
	}
	if c.Router.FeeCollector, err = parseAddress("router.fee_collector", raw.Router.FeeCollector, true); err != nil {
		return nil, err
	}
	for i, signer := range raw.Router.Signers {
		if _, err := parseAddress(fmt.Sprintf("router.signers[%d]", i), signer, true); err != nil {
			return nil, err
		}
	}
	c.Router.Signers = convertToAddressSlice(raw.Router.Signers)
	c.Router.FeeRate = raw.Router.FeeRate
	if raw.Router.ImplementationHash != "" {
		c.Router.ImplementationHash = common.HexToHash(raw.Router.ImplementationHash)
	}

	c.Genesis.Balances, err = parseBalances("genesis.balances", raw.Genesis.Balances)
	if err != nil {
		return nil, err
	}
	for i, t := range raw.Genesis.Tokens {
		field := fmt.Sprintf("genesis.tokens[%d]", i)
		token := GenesisToken{Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
		if token.Address, err = parseAddress(field+".address", t.Address, true); err != nil {
			return nil, err
		}
		if token.Minter, err = parseAddress(field+".minter", t.Minter, false); err != nil {
			return nil, err
		}
		if token.Balances, err = parseBalances(field+".balances", t.Balances); err != nil {
			return nil, err
		}
		if token.Decimals == 0 {
			token.Decimals = 18
		}
		if token.Name == "" {
			token.Name = token.Symbol
		}
		c.Genesis.Tokens = append(c.Genesis.Tokens, token)
	}

	return c, nil
}

func parseBalances(field string, raw map[string]string) (map[common.Address]*big.Int, error) {
	balances := make(map[common.Address]*big.Int, len(raw))
	for addr, value := range raw {
		account, err := parseAddress(field, addr, true)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(field+"."+addr, value)
		if err != nil {
			return nil, err
		}
		balances[account] = amount
	}
	return balances, nil
}

func (c *Config) validate() error {
	if !c.InMemory && c.DbPath == "" {
		return fmt.Errorf("config: db_path is required unless in_memory is set")
	}
	if c.BackupInterval > 0 && c.BackupDir == "" && !c.InMemory {
		return fmt.Errorf("config: backup_dir is required when backups are enabled")
	}
	if len(c.JwtSecret) == 0 {
		return fmt.Errorf("config: jwt_secret is required")
	}
	if c.Router.FeeRate > 10_000 {
		return fmt.Errorf("config: router.fee_rate must be at most 10000 bps, got %d", c.Router.FeeRate)
	}

	seen := map[common.Address]string{}
	for name, addr := range map[string]common.Address{
		"router_address":         c.RouterAddress,
		"wrapped_native_address": c.WrappedNative,
		"permit2_address":        c.Permit2,
	} {
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("config: chain.%s and chain.%s share address %s", name, other, addr.Hex())
		}
		seen[addr] = name
	}
	for _, t := range c.Genesis.Tokens {
		if _, ok := seen[t.Address]; ok {
			return fmt.Errorf("config: genesis token %s collides with address %s", t.Symbol, t.Address.Hex())
		}
		seen[t.Address] = t.Symbol
	}
	return nil
}
