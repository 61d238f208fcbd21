package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.SetLedgerSize(3)
	c.Operation("append", "ok")
	c.StorageFailure("nodes")
	c.RemoteFailure()
	c.DroppedMessage("missing_id")
	c.PushConnection("sse", "error")
	assert.Nil(t, c.Registry())
}

func TestCollector_Exposition(t *testing.T) {
	c := NewCollector("contract_ledger")
	c.SetLedgerSize(2)
	c.Operation("purge", "ok")
	c.Operation("purge", "ok")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.ledgerSize))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.operations.WithLabelValues("purge", "ok")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "contract_ledger_ledger_records 2"))
}
