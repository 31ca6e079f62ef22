package handler

import (
	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

func NewInternalProposalTxHandler(logger cmtlog.Logger) TxHandler {
	return newTxHandler(logger, "internalProposalTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.InternalProposalTx)
		event, err := st.CreateInternalProposal(signer, wtx)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventProposal(event)}, nil
	})
}

func NewProposalTxHandler(logger cmtlog.Logger) TxHandler {
	return newTxHandler(logger, "proposalTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.ProposalTx)
		event, err := st.CreateProposal(signer, wtx)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventProposal(event)}, nil
	})
}

func NewTransitionTxHandler(logger cmtlog.Logger) TxHandler {
	return newTxHandler(logger, "transitionTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.TransitionTx)
		event, err := st.CallTransitionVote(signer, wtx)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventTransition(event)}, nil
	})
}
