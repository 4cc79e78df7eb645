package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/analysis-engine/internal/analysis"
	"github.com/sakif/analysis-engine/internal/apperror"
	"github.com/sakif/analysis-engine/internal/handler"
	"github.com/sakif/analysis-engine/internal/model"
	"github.com/sakif/analysis-engine/internal/repository"
	"github.com/sakif/analysis-engine/internal/service"
)

type memRepo struct {
	records map[string]*model.Analysis
	nextID  int
}

func (m *memRepo) Create(_ context.Context, a *model.Analysis) error {
	m.nextID++
	a.ID = fmt.Sprintf("an-%d", m.nextID)
	stored := *a
	m.records[a.ID] = &stored
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*model.Analysis, error) {
	a, ok := m.records[id]
	if !ok {
		return nil, apperror.NotFound("analysis", id)
	}
	result := *a
	return &result, nil
}

func (m *memRepo) List(_ context.Context, _ repository.ListOptions) ([]model.Analysis, error) {
	result := make([]model.Analysis, 0, len(m.records))
	for _, a := range m.records {
		result = append(result, *a)
	}
	return result, nil
}

func (m *memRepo) Complete(_ context.Context, a *model.Analysis) error {
	stored := *a
	m.records[a.ID] = &stored
	return nil
}

type stubAnalyzer struct {
	report *analysis.Report
	err    error
}

func (s *stubAnalyzer) Analyze(context.Context, analysis.Request) (*analysis.Report, error) {
	return s.report, s.err
}

func newTestHandler(t *testing.T, analyzer service.Analyzer) (*handler.AnalysisHandler, *memRepo) {
	t.Helper()
	repo := &memRepo{records: make(map[string]*model.Analysis)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewAnalysisService(repo, analyzer, t.TempDir(), logger)
	return handler.NewAnalysisHandler(svc, logger), repo
}

func TestHandleAnalyze(t *testing.T) {
	t.Run("successful analysis", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubAnalyzer{report: &analysis.Report{
			Summary: "Done.",
			Charts:  []string{"results/an_1.png"},
		}})

		reqBody := `{"context":"trend check"}`
		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(reqBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var record model.Analysis
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&record))
		assert.Equal(t, model.StatusSucceeded, record.Status)
		assert.Len(t, record.Charts, 1)
	})

	t.Run("invalid request body", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubAnalyzer{})

		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(`{"context":`))
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing context", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubAnalyzer{})

		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(`{"context":""}`))
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var errResp handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
		assert.Equal(t, "validation_error", errResp.Error)
	})

	t.Run("backend unavailable", func(t *testing.T) {
		h, _ := newTestHandler(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(`{"context":"x"}`))
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("incomplete session maps to bad gateway", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubAnalyzer{err: apperror.Incomplete("turn budget exhausted")})

		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(`{"context":"x"}`))
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusBadGateway, rr.Code)

		var errResp handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
		assert.Equal(t, "analysis_incomplete", errResp.Error)
	})

	t.Run("contract violation maps to 422", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubAnalyzer{
			err: apperror.ContractViolation("chart_code", "final action is missing chart code"),
		})

		req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewBufferString(`{"context":"x"}`))
		rr := httptest.NewRecorder()

		h.HandleAnalyze(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}

func TestHandleGetByID(t *testing.T) {
	h, repo := newTestHandler(t, &stubAnalyzer{})
	repo.Create(context.Background(), &model.Analysis{Context: "stored", Status: model.StatusSucceeded})

	router := chi.NewRouter()
	router.Get("/api/analyses/{id}", h.HandleGetByID)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/analyses/an-1", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var record model.Analysis
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&record))
		assert.Equal(t, "stored", record.Context)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/analyses/missing", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleList(t *testing.T) {
	h, repo := newTestHandler(t, &stubAnalyzer{})
	repo.Create(context.Background(), &model.Analysis{Context: "one"})
	repo.Create(context.Background(), &model.Analysis{Context: "two"})

	req := httptest.NewRequest(http.MethodGet, "/api/analyses?limit=10", nil)
	rr := httptest.NewRecorder()

	h.HandleList(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var records []model.Analysis
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&records))
	assert.Len(t, records, 2)
}
