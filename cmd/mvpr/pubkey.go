package main

import (
	"encoding/hex"

	"github.com/calehh/mvpr-app/crypto"
	"github.com/spf13/cobra"
)

type pubkeyArguments struct {
	Skey string
}

var pubkeyArgs pubkeyArguments

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key and governance address of a key file",
	RunE:  pubkeyRun,
}

func init() {
	skeyFlag(pubkeyCmd, &pubkeyArgs.Skey)
}

func pubkeyRun(cmd *cobra.Command, args []string) error {
	pv, err := crypto.LoadFilePV(pubkeyArgs.Skey)
	if err != nil {
		return err
	}
	println("pubkey:", hex.EncodeToString(pv.PublicKey()))
	println("address:", pv.Address().Hex())
	return nil
}
