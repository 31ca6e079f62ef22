package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

const (
	QueryMembers    = "/members/"
	QueryProposals  = "/proposals/"
	QueryMilestones = "/milestones/"
	QueryTallies    = "/tallies/"
	QueryParams     = "/params/"
	QueryNonce      = "/nonce/"
)

var ErrQueryData = fmt.Errorf("%w: malformed query data", types.ErrInvalidArgument)

// EncodeID is the query data for an id: big-endian uint64.
func EncodeID(ids ...uint64) []byte {
	dat := make([]byte, 8*len(ids))
	for i, id := range ids {
		binary.BigEndian.PutUint64(dat[8*i:], id)
	}
	return dat
}

func decodeID(dat []byte) (uint64, error) {
	if len(dat) == 0 || len(dat) > 8 {
		return 0, ErrQueryData
	}
	var idx uint64
	for _, v := range dat {
		idx <<= 8
		idx |= uint64(v)
	}
	return idx, nil
}

// decodeAddress accepts the 20 raw bytes or the hex form of an address.
func decodeAddress(dat []byte) (common.Address, error) {
	if len(dat) == common.AddressLength {
		return common.BytesToAddress(dat), nil
	}
	if common.IsHexAddress(string(dat)) {
		return common.HexToAddress(string(dat)), nil
	}
	return common.Address{}, ErrQueryData
}

func (app *MVPRApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = 404
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// queryFunc loads the value for the request data and the height it was read at.
type queryFunc func(dat []byte) (v any, height uint64, err error)

type querier struct {
	logger cmtlog.Logger
	load   queryFunc
}

func (q *querier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	v, height, err1 := q.load(req.Data)
	res.Height = int64(height)
	if err1 != nil {
		q.logger.Debug("query fail", "path", req.Path, "err", err1)
		res.Code = types.Code(err1)
		res.Log = err1.Error()
		return
	}
	res.Value, err1 = json.Marshal(v)
	if err1 != nil {
		res.Code = types.CodeUnknown
		res.Log = err1.Error()
	}
	return
}

func NewMemberQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func(dat []byte) (any, uint64, error) {
		addr, err := decodeAddress(dat)
		if err != nil {
			return nil, 0, err
		}
		return db.GetMember(addr)
	}}
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func(dat []byte) (any, uint64, error) {
		id, err := decodeID(dat)
		if err != nil {
			return nil, 0, err
		}
		return db.GetProposal(id)
	}}
}

// NewMilestoneQuerier expects 16 bytes: the proposal id then the milestone index.
func NewMilestoneQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func(dat []byte) (any, uint64, error) {
		if len(dat) != 16 {
			return nil, 0, ErrQueryData
		}
		return db.GetMilestone(binary.BigEndian.Uint64(dat[:8]), binary.BigEndian.Uint64(dat[8:]))
	}}
}

func NewTallyQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func(dat []byte) (any, uint64, error) {
		id, err := decodeID(dat)
		if err != nil {
			return nil, 0, err
		}
		return db.GetTally(id)
	}}
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func([]byte) (any, uint64, error) {
		return db.GetParams()
	}}
}

func NewNonceQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &querier{logger: logger, load: func(dat []byte) (any, uint64, error) {
		addr, err := decodeAddress(dat)
		if err != nil {
			return nil, 0, err
		}
		return db.GetNonce(addr)
	}}
}
