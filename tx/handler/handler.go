package handler

import (
	"context"

	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// TxHandler executes one tx type. A tx rejected by the governance engines
// yields a result with a non-zero code; a returned error means the state
// itself could not be updated.
type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ResponseCheckTx, err error)
	Prepare(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ExecTxResult, err error)
}

type applyFunc func(st *state.State, signer common.Address, btx *tx.MVPRTx) (events []abcitypes.Event, err error)

type txHandler struct {
	logger cmtlog.Logger
	apply  applyFunc
}

func newTxHandler(logger cmtlog.Logger, module string, apply applyFunc) *txHandler {
	return &txHandler{
		logger: logger.With("module", module),
		apply:  apply,
	}
}

// Check runs the tx against a copy of st.
func (h *txHandler) Check(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: types.CodeOK}
	signer, err1 := btx.Signer()
	if err1 != nil {
		res.Code = types.CodeUnknown
		res.Log = err1.Error()
		return
	}
	_, err1 = h.apply(st.Clone(), signer, btx)
	if err1 != nil {
		h.logger.Info("CheckTx fail", "type", btx.Type, "err", err1)
		res.Code = types.Code(err1)
		res.Log = err1.Error()
	}
	return
}

func (h *txHandler) handle(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ExecTxResult, err error) {
	res = &abcitypes.ExecTxResult{Code: types.CodeOK}
	signer, err := btx.Signer()
	if err != nil {
		return nil, err
	}
	events, err1 := h.apply(st, signer, btx)
	if err1 != nil {
		h.logger.Info("tx rejected", "type", btx.Type, "signer", signer.Hex(), "err", err1)
		res.Code = types.Code(err1)
		res.Log = err1.Error()
		return
	}
	if err = st.IncNonce(signer, btx.PubKey); err != nil {
		return nil, err
	}
	res.Events = events
	return
}

func (h *txHandler) Prepare(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *txHandler) Process(ctx context.Context, st *state.State, btx *tx.MVPRTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
