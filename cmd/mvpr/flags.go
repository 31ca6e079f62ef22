package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "mvpr node rpc url")
}

func skeyFlag(cmd *cobra.Command, skey *string) {
	cmd.Flags().StringVarP(skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}
