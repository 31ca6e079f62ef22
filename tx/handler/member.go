package handler

import (
	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// NewMemberTxHandler handles AddMember when add is set, RemoveMember otherwise.
func NewMemberTxHandler(logger cmtlog.Logger, add bool) TxHandler {
	return newTxHandler(logger, "memberTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.MemberTx)
		event, err := st.SetMember(signer, wtx, add)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventMember(event)}, nil
	})
}

// NewReputationTxHandler handles Mint when mint is set, Burn otherwise.
func NewReputationTxHandler(logger cmtlog.Logger, mint bool) TxHandler {
	return newTxHandler(logger, "reputationTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.ReputationTx)
		event, err := st.ChangeReputation(signer, wtx, mint)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventReputation(event)}, nil
	})
}

func NewRoleTxHandler(logger cmtlog.Logger, grant bool) TxHandler {
	return newTxHandler(logger, "roleTx", func(st *state.State, signer common.Address, btx *tx.MVPRTx) ([]abcitypes.Event, error) {
		wtx := btx.Tx.(*tx.RoleTx)
		event, err := st.ChangeRole(signer, wtx, grant)
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventRole(event)}, nil
	})
}
