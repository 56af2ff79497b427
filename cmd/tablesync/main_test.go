package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/pkg/tablesync"
)

const cliConfig = `
connections:
  crm:
    type: memory
  warehouse:
    type: memory
sync:
  source: crm
  target: warehouse
  source_table: Customers
  target_table: Customers
logging:
  quiet: true
`

// execute runs the root command with args against a fresh set of flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	syncSource, syncTarget, syncSourceTable, syncTargetTable = "", "", "", ""
	syncKeys, syncTable = nil, false
	diffKeys = nil
	enqueueRefresh, enqueueSourceTable, enqueueTargetTable, enqueueKeys = false, "", "", nil

	path := filepath.Join(t.TempDir(), "tablesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliConfig), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPing(t *testing.T) {
	out, err := execute(t, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "crm")
	assert.Contains(t, out, "OK")

	out, err = execute(t, "ping", "crm", "ghost")
	assert.EqualError(t, err, "1 of 2 connections failed")
	assert.Contains(t, out, "FAIL")
}

func TestSync(t *testing.T) {
	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Success")

	_, err = execute(t, "sync", "--target", "ghost")
	assert.ErrorIs(t, err, tablesync.ErrUnknownConnection)
}

func TestSchema_NotRecorded(t *testing.T) {
	_, err := execute(t, "schema", "crm", "Customers")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDiffAndEnqueue(t *testing.T) {
	out, err := execute(t, "diff", "crm", "Customers")
	require.NoError(t, err)
	assert.Contains(t, out, "New rows: 0")

	out, err = execute(t, "enqueue", "crm", "warehouse")
	require.NoError(t, err)
	assert.Contains(t, out, "Enqueued SYNCHRONIZE job")

	_, err = execute(t, "enqueue", "crm", "ghost")
	assert.ErrorIs(t, err, tablesync.ErrUnknownConnection)
}

func TestBadConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "ping"})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "error loading config")
}
