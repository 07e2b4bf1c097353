package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/FactoryBatch/internal/adapters/bufferstore"
	"github.com/ghalamif/FactoryBatch/internal/app/ingest"
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

func newRouter(h PayloadHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(h, nopObs{}).Routes()
}

func post(r http.Handler, body string) (*httptest.ResponseRecorder, domain.IngestResult) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/telemetry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var res domain.IngestResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func TestPostTelemetry(t *testing.T) {
	store := bufferstore.NewMemoryStore()
	r := newRouter(ingest.NewService(store, nopObs{}))

	w, res := post(r, `{"machine_id":"M01","temperature":72.34,"vibration":0.42,"timestamp":"2024-01-01T10:15:00Z"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusOK, res.Status)
	assert.Equal(t, 1, res.RecordsWritten)

	w, res = post(r, `{"records":[{"machine_id":"M01"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrorKindMalformedInput, res.ErrorKind)

	assert.Equal(t, 1, store.Len())
}

type downHandler struct{}

func (downHandler) HandlePayload(context.Context, []byte) (domain.IngestResult, error) {
	return domain.IngestResult{Status: domain.StatusFailed, ErrorKind: domain.ErrorKindStoreUnavailable}, errors.New("table unavailable")
}

func TestPostTelemetryStoreFailure(t *testing.T) {
	w, res := post(newRouter(downHandler{}), `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrorKindStoreUnavailable, res.ErrorKind)
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(downHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) RecordDLQ([]byte, error)                   {}
