package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/calehh/mvpr-app/app"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

type queryArguments struct {
	Url string
}

var queryArgs queryArguments

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query committed governance state",
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryArgs.Url, "url", "u", "http://127.0.0.1:26657", "mvpr node rpc url")
	queryCmd.AddCommand(
		newQueryCmd("member <address>", "Show membership and reputation balance", app.QueryMembers, addressData),
		newQueryCmd("nonce <address>", "Show the next nonce of a signer", app.QueryNonce, addressData),
		newQueryCmd("proposal <id>", "Show an internal or external proposal", app.QueryProposals, idData),
		newQueryCmd("tally <id>", "Show the vote tally of a proposal", app.QueryTallies, idData),
		newQueryCmd("milestone <id> <index>", "Show one milestone of an external proposal", app.QueryMilestones, idData),
		newQueryCmd("params", "Show the governance parameters", app.QueryParams, nil),
	)
}

func abciQuery(ctx context.Context, cli *http.HTTP, path string, data []byte, v any) (height int64, err error) {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	if res.Response.Code != 0 {
		return 0, fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	if v != nil {
		err = json.Unmarshal(res.Response.Value, v)
	}
	return res.Response.Height, err
}

func addressData(args []string) ([]byte, error) {
	addr, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	return addr.Bytes(), nil
}

func idData(args []string) ([]byte, error) {
	ids := make([]uint64, len(args))
	for i, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", a, err)
		}
		ids[i] = id
	}
	return app.EncodeID(ids...), nil
}

func newQueryCmd(use, short, path string, data func(args []string) ([]byte, error)) *cobra.Command {
	nargs := len(strings.Fields(use)) - 1
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dat []byte
			if data != nil {
				var err error
				if dat, err = data(args); err != nil {
					return err
				}
			}
			cli, err := http.New(queryArgs.Url, "/websocket")
			if err != nil {
				return fmt.Errorf("new client: %w", err)
			}
			var raw json.RawMessage
			height, err := abciQuery(cmd.Context(), cli, path, dat, &raw)
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err = json.Indent(&out, raw, "", "  "); err != nil {
				return err
			}
			fmt.Printf("height: %d\n%s\n", height, out.String())
			return nil
		},
	}
}
