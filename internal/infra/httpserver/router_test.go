package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	appsurvey "github.com/bryanwahyu/survey-insight/internal/application/survey"
	domai "github.com/bryanwahyu/survey-insight/internal/domain/ai"
	domain "github.com/bryanwahyu/survey-insight/internal/domain/survey"
	"github.com/bryanwahyu/survey-insight/internal/infra/export"
	"github.com/bryanwahyu/survey-insight/internal/infra/tabular"
	"github.com/bryanwahyu/survey-insight/internal/middleware"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type invokerFunc func(ctx context.Context, pair domain.PromptPair, q domain.Question) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, pair domain.PromptPair, q domain.Question) (string, error) {
	return f(ctx, pair, q)
}

func analysisOf(_ context.Context, _ domain.PromptPair, q domain.Question) (string, error) {
	return "### Sentiment: Neutral\n### Confidence Rating: Medium\nabout " + string(q), nil
}

func newHandler(t *testing.T, inv invokerFunc, mutate func(*appsurvey.Service, *Options)) http.Handler {
	t.Helper()
	svc := &appsurvey.Service{
		Decoder: tabular.NewDecoder(tabular.Strict),
		Invoker: inv,
		Logger:  zaptest.NewLogger(t),
	}
	opts := Options{MaxUploadBytes: 1 << 20, Logger: zaptest.NewLogger(t)}
	if mutate != nil {
		mutate(svc, &opts)
	}
	return NewRouter(svc, opts)
}

func uploadRequest(t *testing.T, path, field, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAnalyze_OK(t *testing.T) {
	h := newHandler(t, analysisOf, nil)
	req := uploadRequest(t, "/api/analyze", "file", "survey.csv", []byte("Why?,How?\nbecause,fast\n"))

	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	require.Len(t, body.Results, 2)
	assert.Equal(t, domain.Question("Why?"), body.Results[0].Question)
	assert.Equal(t, domain.Question("How?"), body.Results[1].Question)
	assert.Contains(t, body.Results[1].Analysis, "about How?")
	assert.NotContains(t, rec.Body.String(), `"error"`)
}

func TestAnalyze_IsolatedFailureStill200(t *testing.T) {
	h := newHandler(t, func(ctx context.Context, p domain.PromptPair, q domain.Question) (string, error) {
		if q == "B" {
			return "", &domain.InvocationError{Question: q, Cause: errors.New("model down")}
		}
		return analysisOf(ctx, p, q)
	}, nil)

	rec := do(h, uploadRequest(t, "/api/analyze", "file", "s.csv", []byte("A,B\n1,2\n")))
	require.Equal(t, http.StatusOK, rec.Code)

	var body analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "model down", body.Results[1].Error)
	assert.Equal(t, "Analysis unavailable: model down", body.Results[1].Analysis)
}

func TestAnalyze_ClientErrors(t *testing.T) {
	h := newHandler(t, analysisOf, func(_ *appsurvey.Service, o *Options) { o.MaxUploadBytes = 32 })

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "no file field",
			req:        uploadRequest(t, "/api/analyze", "", "", nil),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file uploaded",
		},
		{
			name:       "not csv",
			req:        uploadRequest(t, "/api/analyze", "file", "survey.xlsx", []byte("Q\na\n")),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Only CSV files are allowed",
		},
		{
			name:       "empty file",
			req:        uploadRequest(t, "/api/analyze", "file", "survey.csv", nil),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "uploaded file is empty",
		},
		{
			name:       "too large",
			req:        uploadRequest(t, "/api/analyze", "file", "survey.csv", []byte(strings.Repeat("Q,", 40)+"\n")),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "File too large",
		},
		{
			name:       "malformed csv",
			req:        uploadRequest(t, "/api/analyze", "file", "survey.csv", []byte("Q1,Q2\na\n")),
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "line 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, errorBody(t, rec), tt.wantMsg)
		})
	}
}

func TestAnalyze_NotMultipart(t *testing.T) {
	h := newHandler(t, analysisOf, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := do(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", errorBody(t, rec))
}

func TestAnalyze_QuotaUnderAbortPolicy(t *testing.T) {
	h := newHandler(t, func(_ context.Context, _ domain.PromptPair, q domain.Question) (string, error) {
		return "", &domain.InvocationError{Question: q, Cause: domai.ErrQuotaExceeded}
	}, func(s *appsurvey.Service, _ *Options) { s.Policy = appsurvey.Abort })

	rec := do(h, uploadRequest(t, "/api/analyze", "file", "s.csv", []byte("A\n1\n")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAnalyze_InternalErrorIsGeneric(t *testing.T) {
	h := newHandler(t, func(_ context.Context, _ domain.PromptPair, q domain.Question) (string, error) {
		return "", &domain.InvocationError{Question: q, Cause: errors.New("secret upstream detail")}
	}, func(s *appsurvey.Service, _ *Options) { s.Policy = appsurvey.Abort })

	rec := do(h, uploadRequest(t, "/api/analyze", "file", "s.csv", []byte("A\n1\n")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An error occurred while processing the survey", errorBody(t, rec))
}

func TestExport(t *testing.T) {
	h := newHandler(t, analysisOf, nil)
	rec := do(h, uploadRequest(t, "/api/analyze/export", "file", "survey.CSV", []byte("Why?,How?\nbecause,fast\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "survey-analysis.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	q, err := f.GetCellValue("Analysis", "B3")
	require.NoError(t, err)
	assert.Equal(t, "How?", q)
}

func TestProbesAndMetrics(t *testing.T) {
	metrics := middleware.NewMetrics()
	h := newHandler(t, analysisOf, func(s *appsurvey.Service, o *Options) {
		s.Observer = metrics
		o.Metrics = metrics
		o.APIKeys = map[string]string{"hr": "k1"}
		o.Checkers = map[string]middleware.HealthChecker{
			"archive": middleware.CheckFunc(func(context.Context) error { return nil }),
		}
	})

	for _, p := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := do(h, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}

	rec := do(h, uploadRequest(t, "/api/analyze", "file", "s.csv", []byte("A\n1\n")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := uploadRequest(t, "/api/analyze", "file", "s.csv", []byte("A\n1\n"))
	req.Header.Set("Authorization", "Bearer k1")
	rec = do(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `survey_runs_total{outcome="ok"} 1`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{middleware.ErrNoFile, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&domain.EmptyInputError{Reason: "x"}, http.StatusUnprocessableEntity},
		{&domain.InvocationError{Question: "q", Cause: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := classify(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}

func TestClassify_UploadMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{middleware.ErrNoFile, "No file uploaded"},
		{fmt.Errorf("read form: %w", middleware.ErrNoFile), "No file uploaded"},
		{middleware.ErrNotCSV, "Only CSV files are allowed"},
		{middleware.ErrEmptyUpload, "uploaded file is empty"},
	}
	for _, tt := range tests {
		status, msg := classify(tt.err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, tt.wantMsg, msg)
	}
}
