package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/fystack/payment-gateway/pkg/store/cursorstore"
	"github.com/fystack/payment-gateway/pkg/store/notificationstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const configTemplate = `
env: dev
chains:
  ethereum:
    type: evm
    payment_enabled: true
    contracts:
      payment_receiver: "0x5fbdb2315678afecb367f032d93f642f64180aa3"
    nodes:
      - url: "http://127.0.0.1:8545"
services:
  port: 8080
  kvstore:
    type: badger
    badger:
      directory: %s
`

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "badger")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, dbDir)), 0o600))
	return path, dbDir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestCursorsCommand(t *testing.T) {
	path, dbDir := writeConfig(t)

	kv, err := kvstore.NewBadgerStore(dbDir, "", nil)
	require.NoError(t, err)
	require.NoError(t, cursorstore.New(kv).Save(context.Background(), "ethereum", "106"))
	require.NoError(t, kv.Close())

	var cursors []cursorstore.ChainCursor
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", path, "cursors")), &cursors))
	require.Len(t, cursors, 1)
	assert.Equal(t, "ethereum", cursors[0].Chain)
	assert.Equal(t, "106", cursors[0].Cursor)

	var asYAML []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(execute(t, "--config", path, "-o", "yaml", "cursors")), &asYAML))
	require.Len(t, asYAML, 1)
	assert.Equal(t, "106", asYAML[0]["cursor"])

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "cursors", "reset", "ethereum"})
	assert.Error(t, root.Execute())

	execute(t, "--config", path, "cursors", "reset", "ethereum", "--force")
	assert.Contains(t, execute(t, "--config", path, "cursors"), "[]")
}

func TestNotificationsCommand(t *testing.T) {
	path, dbDir := writeConfig(t)

	kv, err := kvstore.NewBadgerStore(dbDir, "", nil)
	require.NoError(t, err)
	require.NoError(t, notificationstore.New(kv).Enqueue(context.Background(), types.NotificationRecord{
		Key:       "ACC0000001#PAY1#abc",
		Type:      enum.NotificationWebhook,
		Timestamp: time.Now().Add(-time.Minute).Unix(),
		Payload:   json.RawMessage(`{}`),
	}))
	require.NoError(t, kv.Close())

	var pending map[string][]pendingNotification
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", path, "notifications", "webhook")), &pending))
	require.Len(t, pending["webhook"], 1)
	assert.Equal(t, "ACC0000001#PAY1#abc", pending["webhook"][0].Key)

	out := execute(t, "--config", path, "notifications", "ticket", "--message", "refund please", "--email", "buyer@example.com")
	assert.Contains(t, out, `"type": "support_ticket"`)

	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", path, "notifications")), &pending))
	assert.Len(t, pending["support_ticket"], 1)
	assert.Len(t, pending["payment_status"], 0)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "notifications", "bogus"})
	assert.Error(t, root.Execute())
}

func TestRejectsUnknownOutput(t *testing.T) {
	path, _ := writeConfig(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "-o", "xml", "cursors"})
	assert.Error(t, root.Execute())
}

func TestMigrateCommand(t *testing.T) {
	path, dbDir := writeConfig(t)
	ctx := context.Background()

	kv, err := kvstore.NewBadgerStore(dbDir, "", nil)
	require.NoError(t, err)
	require.NoError(t, cursorstore.New(kv).Save(ctx, "ethereum", "106"))
	require.NoError(t, cursorstore.New(kv).Save(ctx, "bitcoin", "00000000abc"))
	require.NoError(t, kv.Set("unrelated/key", "x"))
	require.NoError(t, kv.Close())

	dstDir := filepath.Join(t.TempDir(), "dst")
	dstFile := filepath.Join(t.TempDir(), "dst.yaml")
	require.NoError(t, os.WriteFile(dstFile, []byte("type: badger\nbadger:\n  directory: "+dstDir+"\n"), 0o600))

	var dry MigrationSummary
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", path, "migrate", "--to", dstFile, "--dry-run")), &dry))
	assert.Equal(t, 2, dry.Total)
	assert.Zero(t, dry.Copied)

	var summary MigrationSummary
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--config", path, "migrate", "--to", dstFile, "--verify")), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Copied)

	dst, err := kvstore.NewBadgerStore(dstDir, "", nil)
	require.NoError(t, err)
	defer dst.Close()

	cursor, found, err := cursorstore.New(dst).Load(ctx, "ethereum")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "106", cursor)

	_, err = dst.Get("unrelated/key")
	assert.Error(t, err)
}
