package tx

import (
	"errors"
)

type MVPRTxType uint8

const (
	MVPRTxTypeUnknown                MVPRTxType = 0
	MVPRTxTypeAddMember              MVPRTxType = 1
	MVPRTxTypeRemoveMember           MVPRTxType = 2
	MVPRTxTypeMint                   MVPRTxType = 3
	MVPRTxTypeBurn                   MVPRTxType = 4
	MVPRTxTypeGrantRole              MVPRTxType = 5
	MVPRTxTypeRevokeRole             MVPRTxType = 6
	MVPRTxTypeCreateInternalProposal MVPRTxType = 7
	MVPRTxTypeCreateProposal         MVPRTxType = 8
	MVPRTxTypeCallTransitionVote     MVPRTxType = 9
	MVPRTxTypeSubmitVote             MVPRTxType = 10
	MVPRTxTypeCalculateVote          MVPRTxType = 11
)

func (t MVPRTxType) String() string {
	switch t {
	case MVPRTxTypeAddMember:
		return "add_member"
	case MVPRTxTypeRemoveMember:
		return "remove_member"
	case MVPRTxTypeMint:
		return "mint"
	case MVPRTxTypeBurn:
		return "burn"
	case MVPRTxTypeGrantRole:
		return "grant_role"
	case MVPRTxTypeRevokeRole:
		return "revoke_role"
	case MVPRTxTypeCreateInternalProposal:
		return "create_internal_proposal"
	case MVPRTxTypeCreateProposal:
		return "create_proposal"
	case MVPRTxTypeCallTransitionVote:
		return "call_transition_vote"
	case MVPRTxTypeSubmitVote:
		return "submit_vote"
	case MVPRTxTypeCalculateVote:
		return "calculate_vote"
	}
	return "unknown"
}

const (
	MVPRTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrInvalidPubKey        = errors.New("invalid pubkey")
)
