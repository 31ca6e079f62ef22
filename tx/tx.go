package tx

import (
	"encoding/json"

	"github.com/calehh/mvpr-app/proposal"
	"github.com/calehh/mvpr-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

type MVPRTx struct {
	Version uint8      `json:"version"`
	Type    MVPRTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubKey"`
	Tx      any        `json:"tx"`
	Sig     [][]byte   `json:"sig"`
}

// MemberTx is the payload of AddMember and RemoveMember.
type MemberTx struct {
	Address common.Address `json:"address"`
}

// ReputationTx is the payload of Mint and Burn.
type ReputationTx struct {
	Address common.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

// RoleTx is the payload of GrantRole and RevokeRole.
type RoleTx struct {
	Role    string         `json:"role"`
	Address common.Address `json:"address"`
}

type InternalProposalTx struct {
	PolicingRatio          uint8                   `json:"policingRatio"`
	ReputationMintingValue uint64                  `json:"reputationMintingValue"`
	VoteConfiguration      types.VoteConfiguration `json:"voteConfiguration"`
}

type ProposalTx struct {
	proposal.CreateProposalRequest
}

type TransitionTx struct {
	Proposal uint64 `json:"proposal"`
	Stage    uint64 `json:"stage"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Weight   uint64 `json:"weight"`
	Support  bool   `json:"support"`
}

type CalculateTx struct {
	Proposal uint64 `json:"proposal"`
}

type mvprTxTmpl[Tx any] struct {
	Version uint8      `json:"version"`
	Type    MVPRTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubKey"`
	Tx      Tx         `json:"tx"`
	Sig     [][]byte   `json:"sig"`
}

func (tx *MVPRTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

// Signer is the principal that signed the tx.
func (tx *MVPRTx) Signer() (addr common.Address, err error) {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return addr, ErrInvalidPubKey
	}
	return SignerAddress(tx.PubKey), nil
}

func SignerAddress(pubKey []byte) common.Address {
	return common.BytesToAddress(ed25519.PubKey(pubKey).Address())
}

// Verify checks the single ed25519 signature over SigData(chainID).
func (tx *MVPRTx) Verify(chainID string) bool {
	if len(tx.Sig) != 1 || len(tx.PubKey) != ed25519.PubKeySize {
		return false
	}
	dat, err := tx.SigData([]byte(chainID))
	if err != nil {
		return false
	}
	return ed25519.PubKey(tx.PubKey).VerifySignature(dat, tx.Sig[0])
}

func parseMVPRTxType(dat []byte) MVPRTxType {
	var tx struct {
		Type MVPRTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return MVPRTxTypeUnknown
	}
	return tx.Type
}

func unmarshalMVPRTx[Tx any](dat []byte) (btx *MVPRTx, err error) {
	var txt mvprTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != MVPRTxVersion0 {
		return nil, ErrUnsupportedTxVersion
	}
	btx = new(MVPRTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalMVPRTx(dat []byte) (btx *MVPRTx, err error) {
	tp := parseMVPRTxType(dat)
	switch tp {
	case MVPRTxTypeAddMember, MVPRTxTypeRemoveMember:
		return unmarshalMVPRTx[MemberTx](dat)
	case MVPRTxTypeMint, MVPRTxTypeBurn:
		return unmarshalMVPRTx[ReputationTx](dat)
	case MVPRTxTypeGrantRole, MVPRTxTypeRevokeRole:
		return unmarshalMVPRTx[RoleTx](dat)
	case MVPRTxTypeCreateInternalProposal:
		return unmarshalMVPRTx[InternalProposalTx](dat)
	case MVPRTxTypeCreateProposal:
		return unmarshalMVPRTx[ProposalTx](dat)
	case MVPRTxTypeCallTransitionVote:
		return unmarshalMVPRTx[TransitionTx](dat)
	case MVPRTxTypeSubmitVote:
		return unmarshalMVPRTx[VoteTx](dat)
	case MVPRTxTypeCalculateVote:
		return unmarshalMVPRTx[CalculateTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalMVPRTx(btx *MVPRTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// Sign fills PubKey and Sig using the ed25519 key.
func Sign(btx *MVPRTx, key ed25519.PrivKey, chainID string) (err error) {
	btx.PubKey = key.PubKey().Bytes()
	dat, err := btx.SigData([]byte(chainID))
	if err != nil {
		return
	}
	sig, err := key.Sign(dat)
	if err != nil {
		return
	}
	btx.Sig = [][]byte{sig}
	return
}
