package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"contract-ledger/internal/app"
	"contract-ledger/internal/config"
	"contract-ledger/internal/model"
	"contract-ledger/internal/service"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORAGE_BACKEND", config.BackendFile)
	t.Setenv("STATE_ROOT", t.TempDir())
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
}

func seed(t *testing.T, records ...model.ContractRecord) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	core, err := app.OpenCore(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer core.Close()

	core.Ledger.Upsert(context.Background(), records...)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListFormats(t *testing.T) {
	setupEnv(t)
	seed(t,
		model.ContractRecord{ID: "c-1", Name: "NDA", Status: model.StatusApproved, DeletedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		model.ContractRecord{ID: "c-2", Name: "MSA", Status: model.StatusInReview, DeletedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	)

	out, err := run(t, "list", "-o", "json")
	require.NoError(t, err)
	var view model.LedgerView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 2, view.Count)
	assert.Equal(t, "c-1", view.Head)

	out, err = run(t, "list", "-o", "yaml")
	require.NoError(t, err)
	var decoded model.LedgerView
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "c-2", decoded.Tail)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "NDA")
	assert.Contains(t, out, "2 record(s)")
}

func TestPurgeAndRestore(t *testing.T) {
	setupEnv(t)
	seed(t,
		model.ContractRecord{ID: "c-1", Name: "NDA"},
		model.ContractRecord{ID: "c-2", Name: "MSA"},
	)

	out, err := run(t, "purge", "c-1", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"purged": true`)

	_, err = run(t, "restore", "c-2")
	assert.Error(t, err, "--user is required")

	out, err = run(t, "restore", "c-2", "--user", "alice", "-o", "json")
	require.NoError(t, err)
	var resp model.RestoreResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Restored)

	out, err = run(t, "check", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 0`)
}

func TestSweepNeedsRetention(t *testing.T) {
	setupEnv(t)
	seed(t, model.ContractRecord{ID: "old", Name: "Old", DeletedAt: time.Now().Add(-48 * time.Hour)})

	_, err := run(t, "sweep")
	assert.Error(t, err)

	out, err := run(t, "sweep", "--older-than", "24h", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": 1`)
}

func TestTokenIsAcceptedByServer(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--sub", "u-7", "--role", "admin")
	require.NoError(t, err)

	claims, err := service.NewAuthService("cli-secret").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-7", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestUnknownOutputFormat(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "list", "-o", "xml")
	assert.Error(t, err)
}
