//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-ledger/internal/model"
)

func TestPushedDeletionReachesViewAndAPI(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newLedgerServer(t, backend)

	view := srv.dialView(t)
	snapshot := readViewEvent(t, view)
	require.Equal(t, "ledger.snapshot", snapshot.Type)
	assert.Equal(t, 0, snapshot.Payload.Count)

	backend.push <- `{"_id":"c-1","title":"Supplier Agreement","status":"High Risk","riskScore":81}`

	appended := readViewEvent(t, view)
	assert.Equal(t, "ledger.appended", appended.Type)
	assert.Equal(t, "c-1", appended.Subject)
	require.Len(t, appended.Payload.Items, 1)
	assert.Equal(t, model.StatusHighRisk, appended.Payload.Items[0].Status)
	assert.Equal(t, model.RiskVeryHigh, appended.Payload.Items[0].RiskBand)

	resp, data := srv.request(t, http.MethodGet, "/api/v1/deleted", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed model.LedgerView
	require.NoError(t, json.Unmarshal(data, &listed))
	assert.Equal(t, "c-1", listed.Head)
	assert.Equal(t, "c-1", listed.Tail)
}

func TestPurgeIsMirroredToBackend(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newLedgerServer(t, backend)

	resp, _ := srv.request(t, http.MethodPost, "/api/v1/deleted", map[string]any{"id": "c-9", "name": "Lease"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := srv.request(t, http.MethodDelete, "/api/v1/deleted/c-9", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var purged model.PurgeResponse
	require.NoError(t, json.Unmarshal(data, &purged))
	assert.True(t, purged.Purged)

	assert.Equal(t, []string{"c-9"}, backend.deleted())
	assert.Equal(t, 0, srv.ledger.Len())
}

func TestRestoreMovesRecordToActiveContracts(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newLedgerServer(t, backend)

	for _, id := range []string{"a", "b", "c"} {
		resp, _ := srv.request(t, http.MethodPost, "/api/v1/deleted", map[string]any{"id": id, "name": "Contract " + id})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	view := srv.dialView(t)
	require.Equal(t, 3, readViewEvent(t, view).Payload.Count)

	resp, data := srv.request(t, http.MethodPost, "/api/v1/deleted/b/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restored model.RestoreResponse
	require.NoError(t, json.Unmarshal(data, &restored))
	require.True(t, restored.Restored)

	event := readViewEvent(t, view)
	assert.Equal(t, "ledger.restored", event.Type)
	ids := make([]string, 0, len(event.Payload.Items))
	for _, item := range event.Payload.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	_, data = srv.request(t, http.MethodGet, "/api/v1/contracts", nil)
	var active model.ActiveContractsResponse
	require.NoError(t, json.Unmarshal(data, &active))
	require.Len(t, active.Items, 1)
	assert.Equal(t, "b", active.Items[0].ID)

	assert.Empty(t, backend.deleted())
	assert.Eventually(t, func() bool { return srv.ledger.Len() == 2 }, time.Second, 10*time.Millisecond)
}
