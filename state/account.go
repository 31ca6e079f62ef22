package state

import (
	"encoding/json"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

// Account is the signing identity behind a principal: the ed25519 key it
// signs with and its replay nonce. Reputation lives in the ledger.
type Account struct {
	Address common.Address
	PubKey  ed25519.PubKey
	Nonce   uint64
}

type accountSt struct {
	Address common.Address `json:"address"`
	PubKey  ed25519.PubKey `json:"pubKey"`
	Nonce   uint64         `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Address: a.Address,
		PubKey:  a.PubKey,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Address = o.Address
	a.PubKey = o.PubKey
	a.Nonce = o.Nonce
	return
}

func (a *Account) Clone() *Account {
	n := *a
	n.PubKey = append(ed25519.PubKey(nil), a.PubKey...)
	return &n
}

func (a *Account) SetPubKey(pkey []byte) {
	if a.PubKey == nil {
		a.PubKey = make([]byte, len(pkey))
	}
	copy(a.PubKey, pkey)
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 || len(a.PubKey) != ed25519.PubKeySize {
		return false
	}
	return a.PubKey.VerifySignature(msg, sigs[0])
}
