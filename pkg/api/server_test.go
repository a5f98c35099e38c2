package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/compose"
	"github.com/engramhq/engram/pkg/ingest"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlitestore.Open(context.Background(), sqlitestore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	server := NewServer(compose.New(store, policy.NewRegistry()), ingest.New(store), store)

	router := gin.New()
	server.Routes(router)
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAppendEventThenBuildPacketRoundTrip(t *testing.T) {
	router := newTestServer(t)
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}

	event := model.Event{
		EventID: "ev-1", Scope: scope, Kind: model.EventKindMessage, Payload: []byte(`{"text":"hi"}`),
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	buildReq := model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner}
	body, err = json.Marshal(buildReq)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/packets", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var packet model.MemoryPacket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &packet))
	require.Equal(t, model.SchemaVersion, packet.Meta.SchemaVersion)
}

func TestUpsertFactRejectsMissingKey(t *testing.T) {
	router := newTestServer(t)
	fact := model.Fact{FactID: "f1", Scope: model.Scope{TenantID: "t1"}}
	body, err := json.Marshal(fact)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/facts", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
