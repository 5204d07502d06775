package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"icu-bed-management/internal/extraction"
	"icu-bed-management/internal/models"
	"icu-bed-management/internal/repository"
	"icu-bed-management/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubExtractor returns a canned result or error
type stubExtractor struct {
	result *extraction.Result
	err    error
	calls  int
}

func (s *stubExtractor) Extract(ctx context.Context, audio []byte, mimeType string, bedNumber string) (*extraction.Result, error) {
	s.calls++
	return s.result, s.err
}

type testServer struct {
	router    *gin.Engine
	store     *repository.MemoryStore
	extractor *stubExtractor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	extractor := &stubExtractor{}

	settings := service.NewSettingsService(store, store, models.UnitSettings{UnitName: "ICU", TotalBeds: 4}, logger)
	roster := service.NewRosterService(store, settings, store, logger)
	beds := service.NewBedService(store, store, store, service.NewReconciler(), nil, nil, logger)
	discharge := service.NewDischargeService(store, store, store, nil, nil, logger)
	metrics := service.NewMetricsService(store, store, store, nil, service.Targets{VentilationDays: 5, MobilityRatePct: 80}, logger)
	voice := service.NewVoiceService(beds, extractor, time.Second, logger)

	_, err := roster.Roster(context.Background())
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r,
		NewBedHandler(beds, roster, discharge, voice, 1024, logger),
		NewDashboardHandler(metrics, settings, logger),
		NewSettingsHandler(settings, roster, logger),
		nil,
	)

	return &testServer{router: r, store: store, extractor: extractor}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// envelope decodes the standard {"success", "data", "error"} response body
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

type bedResponse struct {
	Bed    models.Bed   `json:"bed"`
	Roster []models.Bed `json:"roster"`
}

func TestListBeds_ReturnsProvisionedRoster(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/beds", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Beds  []models.Bed `json:"beds"`
		Count int          `json:"count"`
	}
	env := decode(t, w, &data)
	assert.True(t, env.Success)
	assert.Equal(t, 4, data.Count)
	assert.Equal(t, "01", data.Beds[0].BedNumber)
	assert.Equal(t, "04", data.Beds[3].BedNumber)
	assert.Equal(t, models.StatusVacant, data.Beds[0].Status)
}

func TestGetBed_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/beds/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/beds/100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/beds/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "Bed not found", env.Error)
}

func TestUpdateBed_AdmitsVacantBed(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPatch, "/api/beds/2", map[string]interface{}{
		"initials":          "J.S.",
		"narrative":         "Intubated overnight",
		"mobility_target":   3,
		"mobility_achieved": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data bedResponse
	decode(t, w, &data)
	assert.Equal(t, "02", data.Bed.BedNumber)
	assert.Equal(t, models.StatusInvasiveVent, data.Bed.Status)
	assert.Equal(t, "J.S.", data.Bed.Initials)
	assert.NotNil(t, data.Bed.VentilationStartTime)
	require.Len(t, data.Bed.History, 1)
	assert.Equal(t, "IMS target: 3 / achieved: 1", data.Bed.History[0].MetricsSummary)
	assert.Len(t, data.Roster, 4)
}

func TestUpdateBed_RejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]map[string]interface{}{
		"unknown status":     {"status": "Sleeping"},
		"negative mobility":  {"mobility_target": -1},
		"negative counter":   {"extubations": map[string]int{"fail": -2}},
		"unparseable date":   {"ventilation_start_date": "12/03/2025"},
		"wrong type initial": {"initials": 12},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, "/api/beds/01", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	bed, err := s.store.GetBed(context.Background(), "01")
	require.NoError(t, err)
	assert.True(t, bed.IsVacant())
}

func TestUpdateBed_ExtubationCorrectionRecomputesTotal(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPatch, "/api/beds/03", map[string]interface{}{
		"initials":    "A.B.",
		"extubations": map[string]int{"success": 2, "self": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var data bedResponse
	decode(t, w, &data)
	assert.Equal(t, models.ExtubationCounters{Success: 2, Self: 1}, data.Bed.Extubations)
	assert.Equal(t, 3, data.Bed.ExtubationTotal)
}

func TestUpdateClinicalNote(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/beds/01/record", map[string]string{"record": "S: stable"})
	require.Equal(t, http.StatusOK, w.Code)

	var data bedResponse
	decode(t, w, &data)
	require.NotNil(t, data.Bed.LastGeneratedRecord)
	assert.Equal(t, "S: stable", *data.Bed.LastGeneratedRecord)

	w = s.do(t, http.MethodPut, "/api/beds/01/record", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDischarge_ArchivesOccupiedBed(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPatch, "/api/beds/01", map[string]interface{}{
		"initials":               "M.R.",
		"ventilation_start_date": time.Now().Add(-50 * time.Hour).Format(time.RFC3339),
		"extubations":            map[string]int{"fail": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/beds/01/discharge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Bed      models.Bed              `json:"bed"`
		Record   *models.DischargeRecord `json:"record"`
		Archived bool                    `json:"archived"`
	}
	decode(t, w, &data)
	assert.True(t, data.Archived)
	require.NotNil(t, data.Record)
	assert.Equal(t, 3, data.Record.VentilationDurationDays)
	assert.Equal(t, 1, data.Record.ExtubationTotal)
	assert.True(t, data.Bed.IsVacant())
	assert.Equal(t, models.VacantInitials, data.Bed.Initials)
	assert.Zero(t, data.Bed.ExtubationTotal)

	// A second discharge finds a vacant bed and archives nothing
	w = s.do(t, http.MethodPost, "/api/beds/01/discharge", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &data)
	assert.False(t, data.Archived)
}

func TestUploadRecording(t *testing.T) {
	s := newTestServer(t)
	s.extractor.result = &extraction.Result{
		HistoryEntry:        strPtr("Extubated, on room air"),
		ExtubationIncrement: &models.ExtubationCounters{Success: 1},
	}

	w := s.upload(t, "/api/beds/04/recordings", []byte("audio-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data bedResponse
	decode(t, w, &data)
	assert.Equal(t, 1, data.Bed.ExtubationTotal)
	require.Len(t, data.Bed.History, 1)
	assert.Equal(t, "Extubated, on room air", data.Bed.History[0].Text)
}

func TestUploadRecording_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/beds/01/recordings", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, s.extractor.calls)
	})

	t.Run("empty file", func(t *testing.T) {
		s := newTestServer(t)
		w := s.upload(t, "/api/beds/01/recordings", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		s := newTestServer(t)
		w := s.upload(t, "/api/beds/01/recordings", bytes.Repeat([]byte("a"), 4096))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("malformed extraction", func(t *testing.T) {
		s := newTestServer(t)
		s.extractor.err = fmt.Errorf("%w: no object found", extraction.ErrMalformedPayload)
		w := s.upload(t, "/api/beds/01/recordings", []byte("x"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		bed, err := s.store.GetBed(context.Background(), "01")
		require.NoError(t, err)
		assert.True(t, bed.IsVacant())
	})

	t.Run("extraction unavailable", func(t *testing.T) {
		s := newTestServer(t)
		s.extractor.err = fmt.Errorf("%w: webhook returned status 502", extraction.ErrExtractionUnavailable)
		w := s.upload(t, "/api/beds/01/recordings", []byte("x"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func (s *testServer) upload(t *testing.T, path string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "note.webm")
	require.NoError(t, err)
	_, err = part.Write(audio)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestGetIndicators(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPatch, "/api/beds/02", map[string]interface{}{
		"initials":          "L.P.",
		"mobility_target":   4,
		"mobility_achieved": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/beds/02/indicators?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "Bed 02 (L.P.)")
	assert.Contains(t, w.Body.String(), "IMS achieved: 2")

	w = s.do(t, http.MethodGet, "/api/beds/02/indicators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		BedNumber string `json:"bed_number"`
		Text      string `json:"text"`
	}
	decode(t, w, &data)
	assert.Equal(t, "02", data.BedNumber)
	assert.Contains(t, data.Text, "IMS target: 4")
}

func TestGetDashboard(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/dashboard?period=weekly", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		UnitName string         `json:"unit_name"`
		KPI      models.UnitKPI `json:"kpi"`
		Targets  struct {
			VentilationDays int `json:"ventilation_days"`
			MobilityRatePct int `json:"mobility_rate_pct"`
		} `json:"targets"`
	}
	decode(t, w, &data)
	assert.Equal(t, "ICU", data.UnitName)
	assert.Equal(t, 5, data.Targets.VentilationDays)
	assert.Equal(t, 80, data.Targets.MobilityRatePct)
	assert.Zero(t, data.KPI.VentilationAverage)

	for _, q := range []string{"?period=yearly", "?from=2025-03-01", "?from=2025-03-10&to=2025-03-01"} {
		w = s.do(t, http.MethodGet, "/api/dashboard"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestUpdateSettings_ResizesRoster(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]interface{}{"unit_name": "CTI Adulto", "total_beds": 6})
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Settings models.UnitSettings `json:"settings"`
		Roster   []models.Bed        `json:"roster"`
	}
	decode(t, w, &data)
	assert.Equal(t, "CTI Adulto", data.Settings.UnitName)
	assert.Len(t, data.Roster, 6)

	w = s.do(t, http.MethodPut, "/api/settings", map[string]interface{}{"unit_name": "CTI Adulto", "total_beds": 2})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &data)
	assert.Len(t, data.Roster, 2)

	// Shrinking hides beds but keeps their rows
	_, err := s.store.GetBed(context.Background(), "06")
	assert.NoError(t, err)

	w = s.do(t, http.MethodPut, "/api/settings", map[string]interface{}{"unit_name": "CTI Adulto", "total_beds": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings models.UnitSettings
	decode(t, w, &settings)
	assert.Equal(t, 2, settings.TotalBeds)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func strPtr(s string) *string { return &s }
