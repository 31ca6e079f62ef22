package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

// GenesisMember seeds the ledger: membership plus an initial balance.
type GenesisMember struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// GenesisState is the app_state of the genesis document. It carries every
// consensus-critical governance parameter.
type GenesisState struct {
	Owner              common.Address  `json:"owner"`
	Minter             common.Address  `json:"minter"`
	Burner             common.Address  `json:"burner"`
	PolicingRatioFloor uint8           `json:"policing_ratio_floor"`
	Cooldown           uint64          `json:"cooldown"`
	Members            []GenesisMember `json:"members"`
}

func DefaultGenesisState(owner common.Address) *GenesisState {
	return &GenesisState{
		Owner:              owner,
		Minter:             owner,
		Burner:             owner,
		PolicingRatioFloor: DefaultPolicingRatioFloor,
		Cooldown:           DefaultCooldown,
		Members: []GenesisMember{
			{Address: owner, Balance: DefaultGenesisBalance},
		},
	}
}

func (gs *GenesisState) Validate() error {
	if gs.Owner == (common.Address{}) {
		return errors.New("genesis state must include an owner")
	}
	if gs.PolicingRatioFloor > 100 {
		return fmt.Errorf("policing ratio floor above 100 (got %v)", gs.PolicingRatioFloor)
	}
	seen := make(map[common.Address]bool, len(gs.Members))
	for _, m := range gs.Members {
		if seen[m.Address] {
			return fmt.Errorf("duplicate genesis member %v", m.Address.Hex())
		}
		seen[m.Address] = true
	}
	return nil
}

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const MVPRModuleName = "mvpr"
const DefaultPower = 1000

const (
	DefaultPolicingRatioFloor uint8  = 1
	DefaultCooldown           uint64 = 60
	DefaultGenesisBalance     uint64 = 100
)

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)
