package crypto

import (
	"path/filepath"
	"testing"

	"github.com/calehh/mvpr-app/tx"
	"github.com/cometbft/cometbft/privval"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFilePV(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "priv_validator_key.json")
	filePV := privval.GenFilePV(keyFile, filepath.Join(dir, "priv_validator_state.json"))
	filePV.Save()

	pv, err := LoadFilePV(keyFile)
	require.NoError(t, err)
	assert.Equal(t, filePV.Key.PubKey.Bytes(), pv.PublicKey())
	assert.Equal(t, tx.SignerAddress(filePV.Key.PubKey.Bytes()), pv.Address())

	btx := &tx.MVPRTx{Type: tx.MVPRTxTypeAddMember, Tx: &tx.MemberTx{Address: common.HexToAddress("0x01")}}
	require.NoError(t, pv.SignTx(btx, "mvpr-test"))
	assert.True(t, btx.Verify("mvpr-test"))
	assert.False(t, btx.Verify("other-chain"))
}

func TestLoadFilePV_Missing(t *testing.T) {
	_, err := LoadFilePV(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
