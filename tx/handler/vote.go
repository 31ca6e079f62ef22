package handler

import (
	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

func NewVoteTxHandler(logger cmtlog.Logger) TxHandler {
	return newTxHandler(logger, "voteTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.VoteTx)
		event, err := st.SubmitVote(signer, wtx)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventVote(event)}, nil
	})
}

// NewSettleProposalTxHandler handles CalculateVote. Any signer may settle a
// tally once its timeout has passed.
func NewSettleProposalTxHandler(logger cmtlog.Logger) TxHandler {
	return newTxHandler(logger, "settleTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.CalculateTx)
		event, err := st.CalculateVote(signer, wtx)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventSettleProposal(event)}, nil
	})
}
