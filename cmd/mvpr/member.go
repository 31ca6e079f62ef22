package main

import (
	"fmt"
	"strconv"

	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/tx"
	"github.com/spf13/cobra"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Add or remove members (owner only)",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Add a member",
	Args:  cobra.ExactArgs(1),
	RunE:  memberRun(tx.MVPRTxTypeAddMember),
}

var memberRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove a member; the balance is kept",
	Args:  cobra.ExactArgs(1),
	RunE:  memberRun(tx.MVPRTxTypeRemoveMember),
}

var mintCmd = &cobra.Command{
	Use:   "mint <address> <amount>",
	Short: "Mint reputation (minter only)",
	Args:  cobra.ExactArgs(2),
	RunE:  reputationRun(tx.MVPRTxTypeMint),
}

var burnCmd = &cobra.Command{
	Use:   "burn <address> <amount>",
	Short: "Burn reputation (burner only)",
	Args:  cobra.ExactArgs(2),
	RunE:  reputationRun(tx.MVPRTxTypeBurn),
}

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Grant or revoke the minter and burner roles (owner only)",
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant <minter|burner> <address>",
	Short: "Grant a role",
	Args:  cobra.ExactArgs(2),
	RunE:  roleRun(tx.MVPRTxTypeGrantRole),
}

var roleRevokeCmd = &cobra.Command{
	Use:   "revoke <minter|burner> <address>",
	Short: "Revoke a role",
	Args:  cobra.ExactArgs(2),
	RunE:  roleRun(tx.MVPRTxTypeRevokeRole),
}

func init() {
	for _, cmd := range []*cobra.Command{memberAddCmd, memberRemoveCmd, mintCmd, burnCmd, roleGrantCmd, roleRevokeCmd} {
		txFlags(cmd)
	}
	memberCmd.AddCommand(memberAddCmd, memberRemoveCmd)
	roleCmd.AddCommand(roleGrantCmd, roleRevokeCmd)
}

func memberRun(tp tx.MVPRTxType) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		return sendTx(cmd, tp, &tx.MemberTx{Address: addr})
	}
}

func reputationRun(tp tx.MVPRTxType) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		return sendTx(cmd, tp, &tx.ReputationTx{Address: addr, Amount: amount})
	}
}

func roleRun(tp tx.MVPRTxType) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		role, err := reputation.ParseRole(args[0])
		if err != nil {
			return err
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		return sendTx(cmd, tp, &tx.RoleTx{Role: string(role), Address: addr})
	}
}
