package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/calehh/mvpr-app/config"
	"github.com/calehh/mvpr-app/metrics"
	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/tx/handler"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
)

var ErrEmptyAppState = errors.New("genesis app_state is empty")

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &MVPRApp{}

type MVPRApp struct {
	cfg     *config.AppConfig
	logger  cmtlog.Logger
	metrics *metrics.Metrics

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.MVPRTxType]handler.TxHandler
	queriers map[string]Querier

	st *state.State
}

// NewMVPRApp opens the state db under cfg.Home. m may be nil.
func NewMVPRApp(cfg *config.AppConfig, logger cmtlog.Logger, m *metrics.Metrics) (app *MVPRApp, err error) {
	logger = logger.With("module", "app")

	dir := filepath.Join(cfg.Home, "data")
	db, err := state.NewStateDB(dir, logger)
	if err != nil {
		return nil, err
	}
	return newMVPRApp(cfg, logger, db, m), nil
}

func newMVPRApp(cfg *config.AppConfig, logger cmtlog.Logger, db *state.StateDB, m *metrics.Metrics) *MVPRApp {
	app := &MVPRApp{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		db:       db,
		txHdlrs:  make(map[tx.MVPRTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return app
}

func (app *MVPRApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
	app.metrics.Height(int64(height))
}

func (app *MVPRApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("MVPR app stopped")
}

// DB exposes committed state to in-process readers such as the indexer.
func (app *MVPRApp) DB() *state.StateDB {
	return app.db
}

func (app *MVPRApp) registerTxHandler() {
	app.txHdlrs = map[tx.MVPRTxType]handler.TxHandler{
		tx.MVPRTxTypeAddMember:              handler.NewMemberTxHandler(app.logger, true),
		tx.MVPRTxTypeRemoveMember:           handler.NewMemberTxHandler(app.logger, false),
		tx.MVPRTxTypeMint:                   handler.NewReputationTxHandler(app.logger, true),
		tx.MVPRTxTypeBurn:                   handler.NewReputationTxHandler(app.logger, false),
		tx.MVPRTxTypeGrantRole:              handler.NewRoleTxHandler(app.logger, true),
		tx.MVPRTxTypeRevokeRole:             handler.NewRoleTxHandler(app.logger, false),
		tx.MVPRTxTypeCreateInternalProposal: handler.NewInternalProposalTxHandler(app.logger),
		tx.MVPRTxTypeCreateProposal:         handler.NewProposalTxHandler(app.logger),
		tx.MVPRTxTypeCallTransitionVote:     handler.NewTransitionTxHandler(app.logger),
		tx.MVPRTxTypeSubmitVote:             handler.NewVoteTxHandler(app.logger),
		tx.MVPRTxTypeCalculateVote:          handler.NewSettleProposalTxHandler(app.logger),
	}
}

func (app *MVPRApp) registerQuerier() {
	app.queriers[QueryMembers] = NewMemberQuerier(app.db, app.logger)
	app.queriers[QueryProposals] = NewProposalQuerier(app.db, app.logger)
	app.queriers[QueryMilestones] = NewMilestoneQuerier(app.db, app.logger)
	app.queriers[QueryTallies] = NewTallyQuerier(app.db, app.logger)
	app.queriers[QueryParams] = NewParamsQuerier(app.db, app.logger)
	app.queriers[QueryNonce] = NewNonceQuerier(app.db, app.logger)
}

func (app *MVPRApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	st := app.db.NewState()
	if st.Initialized() {
		app.logger.Info("InitChain on initialized state, keep it", "height", st.Header().Height)
		return &abcitypes.ResponseInitChain{AppHash: app.db.State().Hash().Bytes()}, nil
	}
	if len(chain.AppStateBytes) == 0 {
		return nil, ErrEmptyAppState
	}
	var gs types.GenesisState
	if err = json.Unmarshal(chain.AppStateBytes, &gs); err != nil {
		app.logger.Error("InitChain decode app state fail", "err", err)
		return nil, err
	}
	st.SetChainId(chain.ChainId)
	st.SetTime(uint64(chain.Time.Unix()))
	if err = st.InitGenesis(&gs); err != nil {
		app.logger.Error("InitChain genesis fail", "err", err)
		return nil, err
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "owner", gs.Owner.Hex(), "members", len(gs.Members))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *MVPRApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *MVPRApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *MVPRApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *MVPRApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *MVPRApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *MVPRApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *MVPRApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
