package state

import (
	"sync"

	"github.com/calehh/mvpr-app/proposal"
	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/types"
	"github.com/calehh/mvpr-app/voting"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("mvpr", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return newStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the tree in memory.
func NewMemStateDB(logger cmtlog.Logger) (db *StateDB, err error) {
	return newStateDB(dbm.NewMemDB(), "", logger)
}

func newStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "mvprdb")
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("from mvprdb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *Header) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

func (db *StateDB) GetMember(addr common.Address) (acnt reputation.Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err = db.state.initialized(); err != nil {
		return
	}
	acnt, _ = db.state.ledger.Account(addr)
	height = db.state.header.Height
	return
}

// GetProposal returns the internal or external proposal with id.
func (db *StateDB) GetProposal(id uint64) (p any, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err = db.state.initialized(); err != nil {
		return
	}
	height = db.state.header.Height
	kind, err := db.state.lifecycle.Kind(id)
	if err != nil {
		return
	}
	if kind == types.ProposalKindInternal {
		var ip proposal.InternalProposal
		ip, err = db.state.lifecycle.InternalProposal(id)
		return ip, height, err
	}
	var ep proposal.Proposal
	ep, err = db.state.lifecycle.Proposal(id)
	return ep, height, err
}

func (db *StateDB) GetMilestone(id, index uint64) (m types.Milestone, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err = db.state.initialized(); err != nil {
		return
	}
	m, err = db.state.lifecycle.GetMilestone(id, index)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetTally(id uint64) (t voting.Tally, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err = db.state.initialized(); err != nil {
		return
	}
	t, err = db.state.voting.Tally(id)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetParams() (params types.SystemParams, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if err = db.state.initialized(); err != nil {
		return
	}
	params = db.state.lifecycle.Params()
	height = db.state.header.Height
	return
}

func (db *StateDB) GetNonce(addr common.Address) (nonce uint64, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	nonce, err = db.state.Nonce(addr)
	height = db.state.header.Height
	return
}
