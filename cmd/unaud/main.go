package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"unauthority-node/core"
	"unauthority-node/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "unaud", Short: "unauthority node"}
	rootCmd.AddCommand(genesisCmd())
	rootCmd.AddCommand(nodeCmd())
	rootCmd.AddCommand(checkpointCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "genesis", Short: "inspect and validate genesis files"}

	var network string
	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "validate a genesis file against the network's fixed invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadGenesisFromFile(args[0])
			if err != nil {
				return err
			}
			runningNetwork := core.NetworkMainnet
			prefix := "UAT"
			if network == "testnet" {
				runningNetwork = core.NetworkTestnet
				prefix = "LOS"
			}
			if err := core.ValidateGenesis(cfg, runningNetwork, prefix); err != nil {
				return fmt.Errorf("genesis invalid: %w", err)
			}
			fmt.Printf("genesis %s is valid for %s (%d bootstrap nodes, %d dev accounts)\n",
				args[0], runningNetwork, len(cfg.BootstrapNodes), len(cfg.DevAccounts))
			return nil
		},
	}
	validate.Flags().StringVar(&network, "network", "mainnet", "mainnet or testnet")
	cmd.AddCommand(validate)
	return cmd
}

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "node", Short: "run or inspect a node"}

	var genesisPath, dbPath, env string
	var testnet bool
	start := &cobra.Command{
		Use:   "start",
		Short: "initialize ledger, mempool, checkpoint and reward state from a genesis file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New()

			cfg, err := config.Load(env)
			if err != nil {
				logger.Warnf("config load failed, using flag defaults: %v", err)
				cfg = &config.Config{}
			}
			if !cmd.Flags().Changed("db") && cfg.Persistence.DBPath != "" {
				dbPath = cfg.Persistence.DBPath
			}
			if !cmd.Flags().Changed("genesis") && cfg.Network.GenesisFile != "" {
				genesisPath = cfg.Network.GenesisFile
			}
			if !cmd.Flags().Changed("testnet") && err == nil {
				testnet = !cfg.Chain.Mainnet
			}

			binder, err := core.OpenPersistenceBinder(dbPath)
			if err != nil {
				return fmt.Errorf("open persistence: %w", err)
			}
			defer binder.Close()

			network := core.NetworkMainnet
			if testnet {
				network = core.NetworkTestnet
			}
			prefix := network.AddressPrefix()

			gcfg, err := core.LoadGenesisFromFile(genesisPath)
			if err != nil {
				return fmt.Errorf("load genesis: %w", err)
			}
			if err := core.ValidateGenesis(gcfg, network, prefix); err != nil {
				return fmt.Errorf("invalid genesis: %w", err)
			}
			accounts, err := core.LoadGenesisAccounts(gcfg)
			if err != nil {
				return fmt.Errorf("resolve genesis accounts: %w", err)
			}

			ledgerCfg := core.LedgerConfig{
				ChainID:     network,
				Mainnet:     !testnet,
				TotalSupply: core.TotalSupplyVoid,
			}
			ledger := core.NewLedger(ledgerCfg, logger)
			accounts.Seed(ledger)

			mempool := core.NewMempool(10_000)
			checkpoints := core.NewCheckpointStore()
			persistedCheckpoints, err := binder.LoadCheckpoints()
			if err != nil {
				return fmt.Errorf("load checkpoints: %w", err)
			}
			checkpoints.LoadAll(persistedCheckpoints)
			epochDuration := cfg.RewardPool.EpochDurationSecs
			if epochDuration == 0 {
				epochDuration = 86_400
			}
			rewardPool := core.NewRewardPoolWithBalance(gcfg.GenesisTimestamp, epochDuration, testnet, core.ValidatorRewardPoolVoid)

			antiWhaleCfg := core.DefaultAntiWhaleConfig()
			if cfg.AntiWhale.MaxTxPerBlock != 0 {
				antiWhaleCfg = core.AntiWhaleConfig{
					MaxTxPerBlock:      cfg.AntiWhale.MaxTxPerBlock,
					FeeScaleMultiplier: cfg.AntiWhale.FeeScaleMultiplier,
					MaxBurnPerBlock:    cfg.AntiWhale.MaxBurnPerBlock,
				}
			}
			antiWhale := core.NewAntiWhaleEngine(antiWhaleCfg)

			for addr, stake := range accounts.Validators {
				rewardPool.RegisterValidator(addr, true, stake)
			}

			peers, err := core.NewPeerStore(binder)
			if err != nil {
				return fmt.Errorf("load peer store: %w", err)
			}

			fmt.Printf("node initialized: network=%s validators=%d accounts=%d known_peers=%d mempool_pending=%d anti_whale_max_tx=%d\n",
				network, len(accounts.Validators), len(accounts.Accounts), peers.Len(), mempool.Len(), antiWhale.Config().MaxTxPerBlock)
			fmt.Printf("checkpoint stats: %s\n", summaryLine(checkpoints.Stats()))
			fmt.Printf("reward pool: %s\n", summaryLine(rewardPool.Summary()))
			return nil
		},
	}
	start.Flags().StringVar(&genesisPath, "genesis", "genesis.json", "path to genesis file")
	start.Flags().StringVar(&dbPath, "db", "data/unauthority.db", "path to the node's bbolt database")
	start.Flags().BoolVar(&testnet, "testnet", false, "run as a testnet node")
	start.Flags().StringVar(&env, "env", "", "configuration environment overlay to merge")
	cmd.AddCommand(start)
	return cmd
}

func summaryLine(s any) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "checkpoint", Short: "inspect finality checkpoints"}

	var dbPath string
	list := &cobra.Command{
		Use:   "list",
		Short: "list persisted finality checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			binder, err := core.OpenPersistenceBinder(dbPath)
			if err != nil {
				return err
			}
			defer binder.Close()

			cps, err := binder.LoadCheckpoints()
			if err != nil {
				return err
			}
			for _, cp := range cps {
				fmt.Printf("height=%d block_hash=%s validators=%d signatures=%d\n",
					cp.Height, cp.BlockHash, cp.ValidatorCount, cp.SignatureCount)
			}
			return nil
		},
	}
	list.Flags().StringVar(&dbPath, "db", "data/unauthority.db", "path to the node's bbolt database")
	cmd.AddCommand(list)
	return cmd
}
