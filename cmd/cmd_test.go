package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-router/core/agent"
	"github.com/AvaProtocol/ap-router/core/backup"
	"github.com/AvaProtocol/ap-router/core/chainio/signer"
	"github.com/AvaProtocol/ap-router/core/logic"
	"github.com/AvaProtocol/ap-router/model"
	"github.com/AvaProtocol/ap-router/storage"
)

const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignBatch(t *testing.T) {
	router := common.HexToAddress("0x00000000000000000000000000000000000000B1")
	batch := logic.LogicBatch{
		Logics:   []logic.Logic{{To: common.HexToAddress("0xD1"), Data: []byte{0xde, 0xad}}},
		Fees:     []logic.Fee{{Token: logic.NativeToken, Amount: big.NewInt(5)}},
		Deadline: big.NewInt(time.Now().Add(time.Hour).Unix()),
	}
	raw, err := json.Marshal(model.FromBatch(batch))
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(file, raw, 0600))

	req, err := signBatch(SignBatchOption{File: file, PrivateKey: hardhatKey, ChainID: 31337, Router: router.Hex()})
	require.NoError(t, err)

	key, err := signer.ParsePrivateKey(hardhatKey)
	require.NoError(t, err)
	assert.Equal(t, signer.AddressOf(key).Hex(), req.Signer)

	digest, err := batch.Hash(big.NewInt(31337), router)
	require.NoError(t, err)
	sig, err := hexutil.Decode(req.Signature)
	require.NoError(t, err)
	recovered, err := signer.RecoverHash(digest.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.AddressOf(key), recovered, "the signature covers the batch digest")

	_, err = signBatch(SignBatchOption{File: file, PrivateKey: hardhatKey, ChainID: 31337, Router: "nope"})
	assert.Error(t, err)
}

func TestCalcAgent(t *testing.T) {
	router := common.HexToAddress("0x00000000000000000000000000000000000000B1")
	user := common.HexToAddress("0x00000000000000000000000000000000000000E1")

	calcAgentRouter = router.Hex()
	defer func() { calcAgentRouter = "" }()

	var buf bytes.Buffer
	calcAgentCmd.SetOut(&buf)
	defer calcAgentCmd.SetOut(nil)

	require.NoError(t, calcAgentCmd.RunE(calcAgentCmd, []string{user.Hex()}))
	assert.Equal(t, agent.DeriveAddress(router, user, agent.DefaultImplementationHash).Hex()+"\n", buf.String())

	assert.Error(t, calcAgentCmd.RunE(calcAgentCmd, []string{"not-an-address"}))
}

func TestBackupAndRestoreCommands(t *testing.T) {
	ctx := context.Background()
	source := t.TempDir()
	dir := t.TempDir()

	db, err := storage.NewWithPath(source)
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("agent:0xe1"), []byte("record")))
	require.NoError(t, db.Close())

	require.NoError(t, runBackup(ctx, source, dir, 0))

	var buf bytes.Buffer
	backupDir = dir
	listBackupCmd.SetOut(&buf)
	defer listBackupCmd.SetOut(nil)
	require.NoError(t, listBackupCmd.RunE(listBackupCmd, nil))
	file := bytes.TrimSpace(buf.Bytes())
	require.NotEmpty(t, file)

	target := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, runRestore(ctx, target, string(file), false))

	restored, err := storage.NewWithPath(target)
	require.NoError(t, err)
	defer restored.Close()
	value, err := restored.GetKey([]byte("agent:0xe1"))
	require.NoError(t, err)
	assert.Equal(t, "record", string(value))
}

func TestRestoreCleanDropsExistingData(t *testing.T) {
	ctx := context.Background()
	source := t.TempDir()
	dir := t.TempDir()

	db, err := storage.NewWithPath(source)
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("agent:0xe1"), []byte("record")))
	file, err := backup.NewService(nil, db, dir).PerformBackup(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	target := filepath.Join(t.TempDir(), "restored")
	stale, err := storage.NewWithPath(target)
	require.NoError(t, err)
	require.NoError(t, stale.Set([]byte("agent:0xe2"), []byte("stale")))
	require.NoError(t, stale.Close())

	require.NoError(t, runRestore(ctx, target, file, true))

	restored, err := storage.NewWithPath(target)
	require.NoError(t, err)
	defer restored.Close()
	value, err := restored.GetKey([]byte("agent:0xe1"))
	require.NoError(t, err)
	assert.Equal(t, "record", string(value))
	exists, err := restored.Exist([]byte("agent:0xe2"))
	require.NoError(t, err)
	assert.False(t, exists, "a clean restore starts from an empty database")
}
