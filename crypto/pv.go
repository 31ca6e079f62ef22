package crypto

import (
	"fmt"
	"os"

	"github.com/calehh/mvpr-app/tx"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/ethereum/go-ethereum/common"
)

// PV is the node's validator key used as a governance signer.
type PV struct {
	privateKey ed25519.PrivKey
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("error reading PrivValidator key from %v: %w", keyFilePath, err)
	}
	key, ok := pvKey.PrivKey.(ed25519.PrivKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %v in %v", pvKey.PrivKey.Type(), keyFilePath)
	}
	return &PV{privateKey: key}, nil
}

func NewPV(key ed25519.PrivKey) *PV {
	return &PV{privateKey: key}
}

func (k *PV) PublicKey() []byte {
	return k.privateKey.PubKey().Bytes()
}

// Address is the principal this key signs governance txs as.
func (k *PV) Address() common.Address {
	return tx.SignerAddress(k.PublicKey())
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignTx fills the signer and signature of btx for chainID.
func (k *PV) SignTx(btx *tx.MVPRTx, chainID string) error {
	return tx.Sign(btx, k.privateKey, chainID)
}
