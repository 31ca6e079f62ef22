package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/calehh/mvpr-app/proposal"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	PolicingRatio uint8
	MintingValue  uint64
	VoteConfig    []uint
	File          string
	Stage         uint64
	Against       bool
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Create proposals",
}

var proposeInternalCmd = &cobra.Command{
	Use:   "internal",
	Short: "Propose new governance parameters (members only)",
	Args:  cobra.NoArgs,
	RunE:  proposeInternalRun,
}

var proposeExternalCmd = &cobra.Command{
	Use:   "external",
	Short: "Propose an external project from a JSON request file (members only)",
	Args:  cobra.NoArgs,
	RunE:  proposeExternalRun,
}

var transitionCmd = &cobra.Command{
	Use:   "transition <proposal>",
	Short: "Open the vote of a proposal once its cooldown has passed",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRun,
}

var voteCmd = &cobra.Command{
	Use:   "vote <proposal> <weight>",
	Short: "Stake reputation for (or with --against, against) a proposal",
	Args:  cobra.ExactArgs(2),
	RunE:  voteRun,
}

var calculateCmd = &cobra.Command{
	Use:   "calculate <proposal>",
	Short: "Settle a tally after its voting window has closed",
	Args:  cobra.ExactArgs(1),
	RunE:  calculateRun,
}

func init() {
	for _, cmd := range []*cobra.Command{proposeInternalCmd, proposeExternalCmd, transitionCmd, voteCmd, calculateCmd} {
		txFlags(cmd)
	}
	proposeInternalCmd.Flags().Uint8Var(&proposeArgs.PolicingRatio, "policing-ratio", 0, "new policing ratio floor, 1-100")
	proposeInternalCmd.Flags().Uint64Var(&proposeArgs.MintingValue, "minting-value", 0, "new reputation minting value")
	proposeInternalCmd.Flags().UintSliceVar(&proposeArgs.VoteConfig, "vote-config", nil,
		"memberQuorum,reputationQuorum,threshold,timeout,voterStakingLimit")
	proposeExternalCmd.Flags().StringVarP(&proposeArgs.File, "file", "f", "", "proposal request JSON file")
	transitionCmd.Flags().Uint64Var(&proposeArgs.Stage, "stage", 0, "milestone stage of an external proposal")
	voteCmd.Flags().BoolVar(&proposeArgs.Against, "against", false, "vote against the proposal")
	proposeCmd.AddCommand(proposeInternalCmd, proposeExternalCmd)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q: %w", s, err)
	}
	return id, nil
}

func proposeInternalRun(cmd *cobra.Command, args []string) error {
	vals := make([]uint64, len(proposeArgs.VoteConfig))
	for i, v := range proposeArgs.VoteConfig {
		vals[i] = uint64(v)
	}
	cfg, err := types.VoteConfigurationFromSlice(vals)
	if err != nil {
		return err
	}
	return sendTx(cmd, tx.MVPRTxTypeCreateInternalProposal, &tx.InternalProposalTx{
		PolicingRatio:          proposeArgs.PolicingRatio,
		ReputationMintingValue: proposeArgs.MintingValue,
		VoteConfiguration:      cfg,
	})
}

func proposeExternalRun(cmd *cobra.Command, args []string) error {
	if proposeArgs.File == "" {
		return fmt.Errorf("--file is required")
	}
	dat, err := os.ReadFile(proposeArgs.File)
	if err != nil {
		return err
	}
	var req proposal.CreateProposalRequest
	if err = json.Unmarshal(dat, &req); err != nil {
		return fmt.Errorf("decode %v: %w", proposeArgs.File, err)
	}
	return sendTx(cmd, tx.MVPRTxTypeCreateProposal, &tx.ProposalTx{CreateProposalRequest: req})
}

func transitionRun(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return sendTx(cmd, tx.MVPRTxTypeCallTransitionVote, &tx.TransitionTx{Proposal: id, Stage: proposeArgs.Stage})
}

func voteRun(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	weight, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid weight %q: %w", args[1], err)
	}
	return sendTx(cmd, tx.MVPRTxTypeSubmitVote, &tx.VoteTx{Proposal: id, Weight: weight, Support: !proposeArgs.Against})
}

func calculateRun(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return sendTx(cmd, tx.MVPRTxTypeCalculateVote, &tx.CalculateTx{Proposal: id})
}
