package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/calehh/mvpr-app/config"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

const FlagOwner = "owner"

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func newPrintInfo(moniker, chainID, nodeID string, appMessage json.RawMessage) printInfo {
	return printInfo{
		Moniker:    moniker,
		ChainID:    chainID,
		NodeID:     nodeID,
		AppMessage: appMessage,
	}
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize validators's and node's configuration files.
The validator key is also the governance owner unless --owner is given.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "config")
	initCmd.Flags().String(FlagOwner, "", "governance owner address")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	ownerHex, _ := cmd.Flags().GetString(FlagOwner)

	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", rand.Uint64())
	}
	cfg := config.NewMVPRConfig(home)
	genFile := cfg.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %v already exists, use --%v to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	owner := tx.SignerAddress(pk.Bytes())
	if ownerHex != "" {
		if owner, err = parseAddress(ownerHex); err != nil {
			return err
		}
	}
	appState, err := json.MarshalIndent(types.DefaultGenesisState(owner), "", " ")
	if err != nil {
		return err
	}

	vals := []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}}
	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      vals,
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	config.WriteConfigFile(cfg)
	toPrint := newPrintInfo(cfg.Moniker, chainID, nodeID, appGenesis.AppState)
	return displayInfo(toPrint)
}
