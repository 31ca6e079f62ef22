package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/calehh/mvpr-app/clock"
	"github.com/calehh/mvpr-app/proposal"
	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	"github.com/calehh/mvpr-app/voting"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState            = "s"
	KeyLedger           = "l"
	KeyLifecycle        = "e"
	KeySigner           = "a%x"
	KeyNonce            = "n%x"
	KeyMember           = "m%x"
	KeyInternalProposal = "i%016x"
	KeyProposalBody     = "p%016x"
	KeyTally            = "t%016x"
)

var (
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrStateNotInitialized  = errors.New("state not initialized")
	ErrStateAlreadyGenesis  = errors.New("state already initialized")
	ErrSignerPubKeyMismatch = errors.New("signer pubkey mismatch")
)

// Header is the chain-level part of the state.
type Header struct {
	ChainId  string `json:"chainId"`
	Height   uint64 `json:"height"`
	Time     uint64 `json:"time"`
	RootHash []byte `json:"rootHash"`
	Hash     []byte `json:"hash"`
}

func (h *Header) clone() *Header {
	n := *h
	n.RootHash = append([]byte(nil), h.RootHash...)
	n.Hash = append([]byte(nil), h.Hash...)
	return &n
}

type ledgerMeta struct {
	Owner   common.Address   `json:"owner"`
	Minters []common.Address `json:"minters"`
	Burners []common.Address `json:"burners"`
}

type lifecycleMeta struct {
	Owner  common.Address     `json:"owner"`
	Params types.SystemParams `json:"params"`
	NextID uint64             `json:"nextId"`
}

// State is one version of the governance state: the three engines wired
// together over a block clock, plus signer accounts. Records are written to
// the iavl tree in Update.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *Header
	clock  *clock.Block

	ledger    *reputation.Ledger
	lifecycle *proposal.Engine
	voting    *voting.Engine

	acnts         map[common.Address]*Account
	modifiedAcnts map[common.Address]bool
	written       map[string][]byte
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger:        logger,
		db:            db,
		dbVer:         0,
		header:        new(Header),
		clock:         clock.NewBlock(),
		acnts:         make(map[common.Address]*Account),
		modifiedAcnts: make(map[common.Address]bool),
		written:       make(map[string][]byte),
	}
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *Account:
			res[k] = any(x.Clone()).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone returns an independent copy. Mutating the copy never affects s.
func (s *State) Clone() *State {
	n := &State{
		logger:        s.logger,
		db:            s.db,
		dbVer:         s.dbVer,
		header:        s.header.clone(),
		clock:         clock.NewBlock(),
		acnts:         deepCopyMap(s.acnts),
		modifiedAcnts: deepCopyMap(s.modifiedAcnts),
		written:       deepCopyMap(s.written),
	}
	n.clock.Set(s.header.Time)
	if s.ledger != nil {
		err := n.restore(s.ledger.Snapshot(), s.lifecycle.Snapshot(), s.voting.Snapshot())
		if err != nil {
			panic(fmt.Sprintf("clone state: %v", err))
		}
	}
	return n
}

// nextState is the working state of the block after s.
func (s *State) nextState() *State {
	n := s.Clone()
	n.modifiedAcnts = make(map[common.Address]bool)
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func (s *State) restore(ls reputation.Snapshot, ps proposal.Snapshot, vs voting.Snapshot) (err error) {
	ledger := reputation.Restore(ls)
	ledger.SetLogger(s.logger)
	lc, err := proposal.Restore(ps, s.clock, proposal.WithLogger(s.logger))
	if err != nil {
		return err
	}
	v := voting.Restore(vs, ledger, lc, s.clock, voting.WithLogger(s.logger))
	if err = s.wire(ledger, lc, v); err != nil {
		return err
	}
	return nil
}

func (s *State) wire(ledger *reputation.Ledger, lc *proposal.Engine, v *voting.Engine) (err error) {
	if err = lc.SetReputation(lc.Owner(), ledger); err != nil {
		return err
	}
	if err = lc.SetVotingEngine(lc.Owner(), v); err != nil {
		return err
	}
	s.ledger = ledger
	s.lifecycle = lc
	s.voting = v
	return nil
}

// InitGenesis builds and wires the engines from the genesis app state.
func (s *State) InitGenesis(gs *types.GenesisState) (err error) {
	if s.ledger != nil {
		return ErrStateAlreadyGenesis
	}
	if err = gs.Validate(); err != nil {
		return err
	}
	ledger := reputation.New(gs.Owner, gs.Minter, gs.Burner)
	ledger.SetLogger(s.logger)
	lc, err := proposal.NewEngine(gs.Owner, gs.PolicingRatioFloor, s.clock,
		proposal.WithCooldown(gs.Cooldown), proposal.WithLogger(s.logger))
	if err != nil {
		return err
	}
	v := voting.NewEngine(ledger, lc, s.clock, voting.WithLogger(s.logger))
	for _, m := range gs.Members {
		if err = ledger.AddMember(gs.Owner, m.Address); err != nil {
			return err
		}
		if m.Balance == 0 {
			continue
		}
		if err = ledger.Mint(gs.Owner, m.Address, m.Balance); err != nil {
			return err
		}
	}
	return s.wire(ledger, lc, v)
}

func (s *State) Initialized() bool {
	return s.ledger != nil
}

func (s *State) load() (err error) {
	val, err := s.get(KeyState)
	if err != nil || val == nil {
		return err
	}
	if err = json.Unmarshal(val, s.header); err != nil {
		return err
	}
	s.clock.Set(s.header.Time)
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}

	val, err = s.get(KeyLedger)
	if err != nil || val == nil {
		return err
	}
	var lm ledgerMeta
	if err = json.Unmarshal(val, &lm); err != nil {
		return err
	}
	ls := reputation.Snapshot{Owner: lm.Owner, Minters: lm.Minters, Burners: lm.Burners}
	if err = s.iterate(KeyMember, func(val []byte) error {
		var a reputation.Account
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		ls.Accounts = append(ls.Accounts, a)
		return nil
	}); err != nil {
		return err
	}

	val, err = s.get(KeyLifecycle)
	if err != nil {
		return err
	}
	var pm lifecycleMeta
	if err = json.Unmarshal(val, &pm); err != nil {
		return err
	}
	ps := proposal.Snapshot{Owner: pm.Owner, Params: pm.Params, NextID: pm.NextID}
	if err = s.iterate(KeyInternalProposal, func(val []byte) error {
		var p proposal.InternalProposal
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		ps.Internals = append(ps.Internals, p)
		return nil
	}); err != nil {
		return err
	}
	if err = s.iterate(KeyProposalBody, func(val []byte) error {
		var p proposal.Proposal
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		ps.Externals = append(ps.Externals, p)
		return nil
	}); err != nil {
		return err
	}

	var vs voting.Snapshot
	if err = s.iterate(KeyTally, func(val []byte) error {
		var t voting.Tally
		if err := json.Unmarshal(val, &t); err != nil {
			return err
		}
		vs.Tallies = append(vs.Tallies, t)
		return nil
	}); err != nil {
		return err
	}
	return s.restore(ls, ps, vs)
}

func (s *State) get(key string) ([]byte, error) {
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if val != nil {
		s.written[key] = val
	}
	return val, nil
}

// iterate visits every record under the prefix of a formatted key.
func (s *State) iterate(keyFormat string, fn func(val []byte) error) (err error) {
	start := []byte(keyFormat[:1])
	it, err := s.db.Iterator(start, PrefixEndBytes(start), true)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		s.written[string(it.Key())] = it.Value()
		if err = fn(it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = append(s.header.RootHash[:0], rootHash...)
		s.header.Hash = append(s.header.Hash[:0], h[:]...)
	}
	return
}

// records renders every engine record under its key.
func (s *State) records() (recs map[string][]byte, err error) {
	recs = make(map[string][]byte)
	put := func(key string, v any) {
		if err != nil {
			return
		}
		var val []byte
		val, err = json.Marshal(v)
		recs[key] = val
	}
	if s.ledger == nil {
		return recs, nil
	}
	ls := s.ledger.Snapshot()
	put(KeyLedger, ledgerMeta{Owner: ls.Owner, Minters: ls.Minters, Burners: ls.Burners})
	for _, a := range ls.Accounts {
		put(fmt.Sprintf(KeyMember, a.Address.Bytes()), a)
	}
	ps := s.lifecycle.Snapshot()
	put(KeyLifecycle, lifecycleMeta{Owner: ps.Owner, Params: ps.Params, NextID: ps.NextID})
	for _, p := range ps.Internals {
		put(fmt.Sprintf(KeyInternalProposal, p.ID), p)
	}
	for _, p := range ps.Externals {
		put(fmt.Sprintf(KeyProposalBody, p.ID), p)
	}
	for _, t := range s.voting.Snapshot().Tallies {
		put(fmt.Sprintf(KeyTally, t.ProposalID), t)
	}
	return recs, err
}

// Update writes every changed record and returns the working app hash.
// On failure the uncommitted tree changes are rolled back.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	val, err := json.Marshal(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	recs, err := s.records()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if bytes.Equal(s.written[k], recs[k]) {
			continue
		}
		_, err = s.db.Set([]byte(k), recs[k])
		if err != nil {
			return
		}
		s.written[k] = recs[k]
	}

	addrs := make([]common.Address, 0, len(s.modifiedAcnts))
	for addr := range s.modifiedAcnts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	for _, addr := range addrs {
		acnt := s.acnts[addr]
		val, err = acnt.MarshalJSON()
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(fmt.Sprintf(KeySigner, addr.Bytes())), val)
		if err != nil {
			return
		}
		val, err = rlp.EncodeToBytes(acnt.Nonce)
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(fmt.Sprintf(KeyNonce, addr.Bytes())), val)
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.modifiedAcnts = make(map[common.Address]bool)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *Header {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// SetTime moves the block clock to t seconds. Earlier times are ignored.
func (s *State) SetTime(t uint64) {
	if t > s.header.Time {
		s.header.Time = t
	}
	s.clock.Set(t)
}

func (s *State) Now() uint64 {
	return s.clock.Now()
}

func (s *State) Ledger() *reputation.Ledger {
	return s.ledger
}

func (s *State) Lifecycle() *proposal.Engine {
	return s.lifecycle
}

func (s *State) Voting() *voting.Engine {
	return s.voting
}

// FindAccount returns the signer account for addr, or nil if it never
// signed a tx.
func (s *State) FindAccount(addr common.Address) (acnt *Account, err error) {
	if acnt, ok := s.acnts[addr]; ok {
		return acnt, nil
	}
	val, err := s.db.Get([]byte(fmt.Sprintf(KeySigner, addr.Bytes())))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	acnt = new(Account)
	if err = acnt.UnmarshalJSON(val); err != nil {
		return nil, err
	}
	s.acnts[addr] = acnt
	return acnt, nil
}

// Nonce reads the nonce index; a missing entry is nonce zero.
func (s *State) Nonce(addr common.Address) (nonce uint64, err error) {
	if acnt, ok := s.acnts[addr]; ok {
		return acnt.Nonce, nil
	}
	val, err := s.db.Get([]byte(fmt.Sprintf(KeyNonce, addr.Bytes())))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	if val == nil {
		return 0, nil
	}
	err = rlp.DecodeBytes(val, &nonce)
	return
}

// Verify checks the signature and nonce of btx and returns its signer.
func (s *State) Verify(btx *tx.MVPRTx, allowNonceGap bool) (signer common.Address, err error) {
	signer, err = btx.Signer()
	if err != nil {
		return
	}
	a, err := s.FindAccount(signer)
	if err != nil {
		return
	}
	var nonce uint64
	if a != nil {
		nonce = a.Nonce
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		err = fmt.Errorf("%w: expect %d got %d", ErrTxNonceInvalid, nonce, btx.Nonce)
		return
	}
	if !btx.Verify(s.header.ChainId) {
		err = ErrTxSigInvalid
	}
	return
}

// IncNonce records a successful tx by signer.
func (s *State) IncNonce(signer common.Address, pubKey []byte) (err error) {
	a, err := s.FindAccount(signer)
	if err != nil {
		return err
	}
	if a == nil {
		a = &Account{Address: signer}
		a.SetPubKey(pubKey)
	} else if !bytes.Equal(a.PubKey, pubKey) {
		return ErrSignerPubKeyMismatch
	}
	a = a.Clone()
	a.Nonce += 1
	s.acnts[signer] = a
	s.modifiedAcnts[signer] = true
	return nil
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
