package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/tx/handler"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoHandler           = errors.New("no handler for tx type")
	ErrNoFinalizedState    = errors.New("commit without finalized state")
)

// parseTx decodes txDat and checks its signature and nonce against st.
func (app *MVPRApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.MVPRTx, h handler.TxHandler, err error) {
	btx, err = tx.UnmarshalMVPRTx(txDat)
	if err != nil {
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		err = fmt.Errorf("%w: %v", ErrNoHandler, btx.Type)
		return
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *MVPRApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	st := app.db.State()
	btx, h, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		return &abcitypes.ResponseCheckTx{Code: types.Code(err), Log: err.Error()}, nil
	}
	app.logger.Debug("check tx", "type", btx.Type, "nonce", btx.Nonce)
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		return &abcitypes.ResponseCheckTx{Code: types.CodeUnknown, Log: err.Error()}, nil
	}
	return
}

// newBlockState is the working state of a block proposed at blockTime.
func (app *MVPRApp) newBlockState(blockTime int64) *state.State {
	st := app.db.NewState()
	if blockTime > 0 {
		st.SetTime(uint64(blockTime))
	}
	return st
}

// PrepareProposal keeps the txs that still apply cleanly in order, so a
// block never carries a tx the governance engines would reject.
func (app *MVPRApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.newBlockState(proposal.Time.Unix())
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		btx, h, err := app.parseTx(st, stx, false)
		if err != nil {
			app.logger.Info("drop tx, parse fail", "err", err)
			continue
		}
		stTmp := st.Clone()
		result, err := h.Prepare(ctx, stTmp, btx)
		if err != nil {
			app.logger.Error("prepare tx fail", "type", btx.Type, "err", err)
			continue
		}
		if result.Code != types.CodeOK {
			app.logger.Info("drop tx", "type", btx.Type, "code", result.Code, "log", result.Log)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// execute applies txs to st. A tx that fails to decode or verify is recorded
// with a non-zero code; strict makes any non-zero code an error instead.
func (app *MVPRApp) execute(ctx context.Context, st *state.State, txs [][]byte, strict bool) (res []*abcitypes.ExecTxResult, err error) {
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		btx, h, err := app.parseTx(st, stx, false)
		if err != nil {
			if strict {
				return nil, err
			}
			app.logger.Info("tx not applied, parse fail", "err", err)
			res[i] = &abcitypes.ExecTxResult{Code: types.Code(err), Log: err.Error()}
			continue
		}
		result, err := h.Process(ctx, st, btx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedTxProcess, err)
		}
		if strict && result.Code != types.CodeOK {
			return nil, fmt.Errorf("%w: %v code %d: %s", ErrUnexpectedTxProcess, btx.Type, result.Code, result.Log)
		}
		if !strict {
			app.metrics.Tx(btx.Type.String(), result.Code)
			app.recordEvents(result.Events)
		}
		res[i] = result
	}
	return
}

func (app *MVPRApp) recordEvents(events []abcitypes.Event) {
	for _, ev := range events {
		switch ev.Type {
		case types.EventProposalType:
			if e := types.DecodeEventProposal(ev); e != nil {
				app.metrics.Proposal(types.ProposalKind(e.Kind).String())
			}
		case types.EventVoteType:
			if e := types.DecodeEventVote(ev); e != nil {
				app.metrics.Vote(e.Weight)
			}
		case types.EventSettleProposalType:
			if e := types.DecodeEventSettleProposal(ev); e != nil {
				app.metrics.Settled(e.State == int64(types.ProposalStateAccepted))
			}
		}
	}
}

func (app *MVPRApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	st := app.newBlockState(proposal.Time.Unix())
	_, err = app.execute(ctx, st, proposal.Txs, true)
	if err != nil {
		app.logger.Error("reject proposal", "height", proposal.Height, "err", err)
		return res, nil
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height, "txs", len(proposal.Txs))
	return res, nil
}

func (app *MVPRApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.newBlockState(req.Time.Unix())
	app.st = st
	res, err := app.execute(ctx, st, req.Txs, false)
	if err != nil {
		return nil, err
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *MVPRApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoFinalizedState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	height := app.st.Header().Height
	app.st = nil
	app.metrics.Height(int64(height))
	app.logger.Info("Commit", "height", height)
	return &abcitypes.ResponseCommit{}, nil
}
