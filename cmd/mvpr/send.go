package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calehh/mvpr-app/app"
	"github.com/calehh/mvpr-app/crypto"
	"github.com/calehh/mvpr-app/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url     string
	ChainId string
	Nonce   int64
	Skey    string
	NoSend  bool
}

var txArgs txArguments

func txFlags(cmd *cobra.Command) {
	urlFlag(cmd, &txArgs.Url)
	skeyFlag(cmd, &txArgs.Skey)
	cmd.Flags().StringVar(&txArgs.ChainId, "chain-id", "", "chain id, read from the node genesis when empty")
	cmd.Flags().Int64VarP(&txArgs.Nonce, "nonce", "n", -1, "signer nonce, queried from the node when negative")
	cmd.Flags().BoolVarP(&txArgs.NoSend, "nosend", "", false, "print the signed tx instead of sending it")
}

func queryNonce(ctx context.Context, cli *http.HTTP, addr common.Address) (nonce uint64, err error) {
	_, err = abciQuery(ctx, cli, app.QueryNonce, addr.Bytes(), &nonce)
	return
}

// sendTx signs payload as a tp tx with the key at --skeyPath and broadcasts it.
func sendTx(cmd *cobra.Command, tp tx.MVPRTxType, payload any) error {
	pv, err := crypto.LoadFilePV(txArgs.Skey)
	if err != nil {
		return err
	}
	cli, err := http.New(txArgs.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	ctx := cmd.Context()
	chainId := txArgs.ChainId
	if chainId == "" {
		gres, err := cli.Genesis(ctx)
		if err != nil {
			return fmt.Errorf("get chain genesis: %w", err)
		}
		chainId = gres.Genesis.ChainID
	}
	var nonce uint64
	if txArgs.Nonce >= 0 {
		nonce = uint64(txArgs.Nonce)
	} else if nonce, err = queryNonce(ctx, cli, pv.Address()); err != nil {
		return err
	}

	btx := &tx.MVPRTx{
		Version: tx.MVPRTxVersion0,
		Type:    tp,
		Nonce:   nonce,
		Tx:      payload,
	}
	if err = pv.SignTx(btx, chainId); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalMVPRTx(btx)
	if err != nil {
		return err
	}
	fmt.Println("signer:", pv.Address().Hex(), "nonce:", nonce, "type:", tp)
	if txArgs.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected: code %d: %s", res.Code, res.Log)
	}
	return nil
}
