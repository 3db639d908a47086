package config

// Package config provides a reusable loader for unauthority node
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"

	"github.com/spf13/viper"

	"unauthority-node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config represents the unified configuration for an unauthority node. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		ID             string   `mapstructure:"id" json:"id"`
		ChainID        int      `mapstructure:"chain_id" json:"chain_id"`
		MaxPeers       int      `mapstructure:"max_peers" json:"max_peers"`
		GenesisFile    string   `mapstructure:"genesis_file" json:"genesis_file"`
		RPCEnabled     bool     `mapstructure:"rpc_enabled" json:"rpc_enabled"`
		P2PPort        int      `mapstructure:"p2p_port" json:"p2p_port"`
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	// Chain carries the ledger's validation knobs: chain id, mainnet/testnet
	// mode, and the fee/mint/stake thresholds core.LedgerConfig needs.
	Chain struct {
		Mainnet              bool   `mapstructure:"mainnet" json:"mainnet"`
		MinTxFeeVoid         string `mapstructure:"min_tx_fee_void" json:"min_tx_fee_void"`
		MaxMintPerBlockVoid  string `mapstructure:"max_mint_per_block_void" json:"max_mint_per_block_void"`
		MinValidatorStakeUAT int64  `mapstructure:"min_validator_stake_uat" json:"min_validator_stake_uat"`
	} `mapstructure:"chain" json:"chain"`

	Consensus struct {
		Type                string `mapstructure:"type" json:"type"`
		BlockTimeMS         int    `mapstructure:"block_time_ms" json:"block_time_ms"`
		ValidatorsRequired  int    `mapstructure:"validators_required" json:"validators_required"`
		BlockTimeoutMS      uint64 `mapstructure:"block_timeout_ms" json:"block_timeout_ms"`
		ViewChangeTimeoutMS uint64 `mapstructure:"view_change_timeout_ms" json:"view_change_timeout_ms"`
	} `mapstructure:"consensus" json:"consensus"`

	// Checkpoint configures finality checkpoint cadence and retention.
	Checkpoint struct {
		IntervalBlocks uint64 `mapstructure:"interval_blocks" json:"interval_blocks"`
		KeepLast       int    `mapstructure:"keep_last" json:"keep_last"`
	} `mapstructure:"checkpoint" json:"checkpoint"`

	// RewardPool configures validator reward distribution.
	RewardPool struct {
		EpochDurationSecs int64 `mapstructure:"epoch_duration_secs" json:"epoch_duration_secs"`
		GenesisTimestamp  int64 `mapstructure:"genesis_timestamp" json:"genesis_timestamp"`
	} `mapstructure:"reward_pool" json:"reward_pool"`

	// AntiWhale configures the spam/concentration-limiting engine.
	AntiWhale struct {
		MaxTxPerBlock      uint32 `mapstructure:"max_tx_per_block" json:"max_tx_per_block"`
		FeeScaleMultiplier uint64 `mapstructure:"fee_scale_multiplier" json:"fee_scale_multiplier"`
		MaxBurnPerBlock    uint64 `mapstructure:"max_burn_per_block" json:"max_burn_per_block"`
	} `mapstructure:"anti_whale" json:"anti_whale"`

	VM struct {
		MaxGasPerBlock int  `mapstructure:"max_gas_per_block" json:"max_gas_per_block"`
		OpcodeDebug    bool `mapstructure:"opcode_debug" json:"opcode_debug"`
	} `mapstructure:"vm" json:"vm"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	// Persistence configures the bbolt-backed store independent of Storage,
	// which remains for any legacy pruning/location settings.
	Persistence struct {
		DBPath         string `mapstructure:"db_path" json:"db_path"`
		OpenTimeoutSec int    `mapstructure:"open_timeout_sec" json:"open_timeout_sec"`
	} `mapstructure:"persistence" json:"persistence"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up matching process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SYNN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SYNN_ENV", ""))
}
