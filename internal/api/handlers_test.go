// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProfDian/water-qual-sub000/internal/alerting"
	"github.com/ProfDian/water-qual-sub000/internal/buffer"
	"github.com/ProfDian/water-qual-sub000/internal/data"
	"github.com/ProfDian/water-qual-sub000/internal/quality"
	"github.com/ProfDian/water-qual-sub000/internal/reconciler"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
)

func newTestHandler() (*Handler, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	scorer := quality.NewScorer(quality.DefaultConfig())
	dispatcher := alerting.NewDispatcher(store, nil, nil)
	rec := reconciler.New(store, scorer, dispatcher, buffer.DefaultMergeWindow)
	buf := buffer.NewIngestBuffer(store, buffer.DefaultMergeWindow)
	jan := buffer.NewJanitor(store, buffer.DefaultReportWindow)
	return NewHandler(buf, rec, jan, store, nil, nil), store
}

func submitBody(side string, ph, tds, turbidity, temperature float64) []byte {
	body := fmt.Sprintf(`{
		"facility_id": "fac-1",
		"side": %q,
		"device_id": "dev-%s",
		"parameters": {"ph": %g, "tds": %g, "turbidity": %g, "temperature": %g}
	}`, side, side, ph, tds, turbidity, temperature)
	return []byte(body)
}

func postReading(t *testing.T, h *Handler, body []byte) (*httptest.ResponseRecorder, SubmitResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleSubmitReading(rr, req)

	var resp SubmitResponse
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func TestSubmitReadingValidation(t *testing.T) {
	h, _ := newTestHandler()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"bad side", `{"facility_id":"fac-1","side":"middle","device_id":"d","parameters":{"ph":7,"tds":100,"turbidity":5,"temperature":20}}`},
		{"missing parameter", `{"facility_id":"fac-1","side":"inlet","device_id":"d","parameters":{"ph":7,"tds":100,"turbidity":5}}`},
		{"unknown field", `{"facility_id":"fac-1","side":"inlet","device_id":"d","parameters":{"ph":7,"tds":100,"turbidity":5,"temperature":20},"extra":true}`},
		{"not json", `ph=7`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, _ := postReading(t, h, []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestSubmitReadingSingleSideWaits(t *testing.T) {
	h, _ := newTestHandler()

	rr, resp := postReading(t, h, submitBody("inlet", 7.2, 450, 25, 28))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, resp.Merged)
	assert.Equal(t, data.SideOutlet, resp.WaitingFor)
	assert.NotEmpty(t, resp.EntryID)
	assert.Empty(t, resp.ReadingID)
	assert.Nil(t, resp.QualityAnalysis)
}

func TestSubmitReadingPairMerges(t *testing.T) {
	h, store := newTestHandler()

	rr, resp := postReading(t, h, submitBody("inlet", 7.2, 450, 25, 28))
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, resp.Merged)

	rr, resp = postReading(t, h, submitBody("outlet", 7.8, 320, 8, 29))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Merged)
	assert.NotEmpty(t, resp.ReadingID)
	require.NotNil(t, resp.QualityAnalysis)
	assert.Equal(t, 100, resp.QualityAnalysis.Score)
	assert.Equal(t, data.QualityExcellent, resp.QualityAnalysis.Status)

	readings, _ := store.RecentReadings(context.Background(), 10)
	require.Len(t, readings, 1)
	assert.Equal(t, "dev-inlet", readings[0].DeviceIDs.Inlet)
	assert.Equal(t, "dev-outlet", readings[0].DeviceIDs.Outlet)
}

func TestSubmitReadingViolationCreatesAlert(t *testing.T) {
	h, store := newTestHandler()

	postReading(t, h, submitBody("inlet", 7.0, 600, 40, 25))
	rr, resp := postReading(t, h, submitBody("outlet", 9.5, 400, 10, 25))

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, resp.Merged)
	require.NotNil(t, resp.QualityAnalysis)
	require.Len(t, resp.QualityAnalysis.Violations, 1)

	alerts, _ := store.AlertsByFacility(context.Background(), "fac-1", 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, data.ParamPH, alerts[0].Parameter)
	assert.Equal(t, data.AlertStatusActive, alerts[0].Status)
	assert.Equal(t, resp.ReadingID, alerts[0].ReadingID)
}

func TestBufferStatusEndpoint(t *testing.T) {
	h, _ := newTestHandler()

	postReading(t, h, submitBody("inlet", 7.2, 450, 25, 28))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/buffer/status?facility_id=fac-1", nil)
	rr := httptest.NewRecorder()
	h.HandleBufferStatus(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats data.BufferStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Unmerged)
	assert.Equal(t, int64(1), stats.BySide[data.SideInlet])
}

func TestSweepEndpoint(t *testing.T) {
	h, store := newTestHandler()

	old := time.Now().Add(-20 * time.Minute)
	store.InsertPending(context.Background(), &data.PendingEntry{
		FacilityID: "fac-1",
		Side:       data.SideInlet,
		Parameters: data.Parameters{PH: 7, TDS: 300, Turbidity: 5, Temperature: 20},
		ReceivedAt: old,
		ExpiresAt:  old.Add(5 * time.Minute),
	})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/buffer/sweep", nil)
	rr := httptest.NewRecorder()
	h.HandleSweep(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body["deleted"])
}

func TestRecentReadingsAndAlertsReturnEmptyArrays(t *testing.T) {
	h, _ := newTestHandler()

	rr := httptest.NewRecorder()
	h.HandleRecentReadings(rr, httptest.NewRequest(http.MethodGet, "/api/v1/readings/recent", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.HandleAlerts(rr, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestQueryLimitFallbacks(t *testing.T) {
	cases := []struct {
		url  string
		want int64
	}{
		{"/x", 50},
		{"/x?limit=10", 10},
		{"/x?limit=0", 50},
		{"/x?limit=-3", 50},
		{"/x?limit=abc", 50},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, tc.url, nil)
		assert.Equalf(t, tc.want, queryLimit(r, 50), "url %s", tc.url)
	}
}
