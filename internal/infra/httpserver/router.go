package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	appsurvey "github.com/bryanwahyu/survey-insight/internal/application/survey"
	domai "github.com/bryanwahyu/survey-insight/internal/domain/ai"
	domain "github.com/bryanwahyu/survey-insight/internal/domain/survey"
	"github.com/bryanwahyu/survey-insight/internal/infra/export"
	"github.com/bryanwahyu/survey-insight/internal/middleware"
)

const (
	formField       = "file"
	genericFailure  = "An error occurred while processing the survey"
	msgNoFile       = "No file uploaded"
	msgNotCSV       = "Only CSV files are allowed"
	multipartMemory = 32 << 20
	// room for multipart boundaries and headers on top of the file itself
	multipartOverhead = 1 << 20
)

// Analyzer is the pipeline as seen by the HTTP layer.
type Analyzer interface {
	Run(ctx context.Context, raw []byte) (*appsurvey.Run, error)
}

// Options configure the router. Zero values disable the matching feature.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	APIKeys        map[string]string
	RateLimitRPS   float64
	RateLimitBurst int
	Metrics        *middleware.Metrics
	Checkers       map[string]middleware.HealthChecker
	Logger         *zap.Logger
}

type Router struct {
	svc       Analyzer
	maxUpload int64
	log       *zap.Logger
}

type analyzeResponse struct {
	RunID   string                  `json:"run_id"`
	Results domain.ResultCollection `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewRouter(svc Analyzer, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{svc: svc, maxUpload: opts.MaxUploadBytes, log: log.Named("http")}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(log))
	mux.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimitRPS > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst, log))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/api/analyze", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleAnalyze))
		rt.Post("/export", r.wrap(r.handleExport))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps handler errors onto status codes and the JSON error body.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			r.log.Error("http.handler.error",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimw.GetReqID(req.Context())),
				zap.Error(err))
		}
		if errors.Is(err, context.Canceled) && req.Context().Err() != nil {
			// client went away, nobody is listening
			return
		}
		render.Status(req, status)
		render.JSON(w, req, errorResponse{Error: msg})
	}
}

func classify(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, middleware.ErrNoFile):
		return http.StatusBadRequest, msgNoFile
	case errors.Is(err, middleware.ErrNotCSV):
		return http.StatusBadRequest, msgNotCSV
	case errors.Is(err, middleware.ErrEmptyUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, middleware.ErrFileTooBig), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, domain.ErrDecode), errors.Is(err, domain.ErrEmptyInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, genericFailure
	default:
		return http.StatusInternalServerError, genericFailure
	}
}

// POST /api/analyze (multipart, field "file")
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	run, err := r.runUpload(w, req)
	if err != nil {
		return err
	}
	render.JSON(w, req, analyzeResponse{RunID: run.ID, Results: run.Results})
	return nil
}

// POST /api/analyze/export (multipart, field "file") -> XLSX workbook
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	run, err := r.runUpload(w, req)
	if err != nil {
		return err
	}
	book, err := export.XLSX(run.Results)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="survey-analysis.xlsx"`)
	w.Header().Set("X-Run-ID", run.ID)
	_, err = w.Write(book)
	return err
}

func (r *Router) runUpload(w http.ResponseWriter, req *http.Request) (*appsurvey.Run, error) {
	raw, name, err := r.readUpload(w, req)
	if err != nil {
		return nil, err
	}
	r.log.Info("http.upload",
		zap.String("file", middleware.SanitizeFilename(name)),
		zap.Int("bytes", len(raw)))
	return r.svc.Run(req.Context(), raw)
}

func (r *Router) readUpload(w http.ResponseWriter, req *http.Request) ([]byte, string, error) {
	if r.maxUpload > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartOverhead)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", err
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", middleware.ErrNoFile
		}
		return nil, "", fmt.Errorf("parse form: %w", err)
	}

	file, header, err := req.FormFile(formField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", middleware.ErrNoFile
		}
		return nil, "", err
	}
	defer file.Close()

	if err := middleware.ValidateUploadName(header.Filename); err != nil {
		return nil, "", err
	}
	raw, err := readAll(file, r.maxUpload)
	if err != nil {
		return nil, "", err
	}
	return raw, header.Filename, nil
}

func readAll(f multipart.File, max int64) ([]byte, error) {
	var src io.Reader = f
	if max > 0 {
		src = io.LimitReader(f, max+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if err := middleware.ValidateUploadSize(int64(len(raw)), max); err != nil {
		return nil, err
	}
	return raw, nil
}
