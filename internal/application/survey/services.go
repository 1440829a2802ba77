package survey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/survey-insight/internal/application"
	domain "github.com/bryanwahyu/survey-insight/internal/domain/survey"
	"github.com/bryanwahyu/survey-insight/internal/infra/ai/prompt"
)

// FailurePolicy decides what a failed invocation does to the run.
type FailurePolicy string

const (
	// Isolate records an error marker for the failed question and keeps going.
	Isolate FailurePolicy = "isolate"
	// Abort cancels the remaining questions and fails the whole run.
	Abort FailurePolicy = "abort"
)

const DefaultConcurrency = 4

// Invoker port (prompt pair -> raw analysis text)
type Invoker interface {
	Invoke(ctx context.Context, pair domain.PromptPair, q domain.Question) (string, error)
}

// Observer receives run and per-question outcomes, e.g. for metrics.
type Observer interface {
	RunFinished(outcome string, elapsed time.Duration)
	QuestionFinished(outcome, sentiment string, elapsed time.Duration)
	InvocationStarted()
	InvocationDone()
}

// Service orchestrates one analysis run: decode, extract questions, then
// build/invoke/record for every question with bounded concurrency.
// Service is safe for concurrent use; runs share nothing but the injected ports.
type Service struct {
	Decoder     domain.Decoder
	Invoker     Invoker
	Archive     domain.ArtifactStore // optional
	Observer    Observer             // optional
	Clock       application.Clock
	Logger      *zap.Logger
	Concurrency int
	Policy      FailurePolicy
}

// Run is the result of one successful run.
type Run struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	ArchiveURL string
	Results    domain.ResultCollection
}

// Analyze runs the pipeline and returns only the result collection.
func (s *Service) Analyze(ctx context.Context, raw []byte) (domain.ResultCollection, error) {
	run, err := s.Run(ctx, raw)
	if err != nil {
		return nil, err
	}
	return run.Results, nil
}

// Run jalanin pipeline end-to-end. Decode and extraction errors are fatal;
// invocation errors follow s.Policy. A cancelled ctx discards everything.
func (s *Service) Run(ctx context.Context, raw []byte) (*Run, error) {
	log := s.logger()
	clock := s.clock()
	run := &Run{ID: uuid.New().String(), StartedAt: clock.Now()}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline.run.start", zap.Int("bytes", len(raw)))

	finish := func(outcome string) {
		run.Duration = clock.Now().Sub(run.StartedAt)
		if s.Observer != nil {
			s.Observer.RunFinished(outcome, run.Duration)
		}
	}

	if s.Archive != nil {
		key := fmt.Sprintf("uploads/%s/%s.csv", run.StartedAt.UTC().Format("2006/01"), run.ID)
		url, err := s.Archive.Put(ctx, key, raw, "text/csv")
		if err != nil {
			log.Warn("pipeline.archive.error", zap.String("key", key), zap.Error(err))
		} else {
			run.ArchiveURL = url
		}
	}

	table, err := s.Decoder.Decode(raw)
	if err != nil {
		log.Warn("pipeline.decode.error", zap.Error(err))
		finish("decode_error")
		return nil, err
	}

	questions, err := domain.ExtractQuestions(table)
	if err != nil {
		log.Warn("pipeline.extract.error", zap.Error(err))
		finish("empty_input")
		return nil, err
	}
	log.Info("pipeline.questions",
		zap.Int("questions", len(questions)),
		zap.Int("rows", len(table.Records)))

	results, err := s.analyzeAll(ctx, log, table, questions)
	if err != nil {
		if ctx.Err() != nil {
			finish("cancelled")
		} else {
			finish("invocation_error")
		}
		log.Warn("pipeline.run.failed", zap.Error(err))
		return nil, err
	}

	run.Results = results
	finish("ok")
	log.Info("pipeline.run.done",
		zap.Int("questions", len(results)),
		zap.Int("failed", results.Failures()),
		zap.Duration("elapsed", run.Duration))
	return run, nil
}

func (s *Service) analyzeAll(ctx context.Context, log *zap.Logger, table domain.Table, questions []domain.Question) (domain.ResultCollection, error) {
	// one slot per question; each goroutine writes only its own index
	results := make(domain.ResultCollection, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())

	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.analyzeOne(gctx, log, table, q)
			if err != nil {
				if s.Policy == Abort || gctx.Err() != nil {
					return err
				}
				res = errorMarker(q, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	// a cancellation that raced the last goroutine still discards the run
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) analyzeOne(ctx context.Context, log *zap.Logger, table domain.Table, q domain.Question) (domain.AnalysisResult, error) {
	start := time.Now()
	pair := prompt.Build(q, domain.AnswersFor(table, q))

	if s.Observer != nil {
		s.Observer.InvocationStarted()
		defer s.Observer.InvocationDone()
	}
	text, err := s.Invoker.Invoke(ctx, pair, q)
	if err != nil {
		if s.Observer != nil {
			s.Observer.QuestionFinished("failed", "", time.Since(start))
		}
		return domain.AnalysisResult{}, err
	}

	if missing := prompt.CheckSections(text); len(missing) > 0 {
		log.Warn("pipeline.analysis.format_drift",
			zap.String("question", string(q)),
			zap.Strings("missing", missing))
	}
	sentiment, _ := prompt.Headline(text)
	if s.Observer != nil {
		s.Observer.QuestionFinished("ok", sentiment, time.Since(start))
	}
	return domain.AnalysisResult{Question: q, Analysis: text}, nil
}

// errorMarker is the placeholder stored for a question whose analysis failed.
func errorMarker(q domain.Question, err error) domain.AnalysisResult {
	reason := err.Error()
	var ie *domain.InvocationError
	if errors.As(err, &ie) && ie.Cause != nil {
		reason = ie.Cause.Error()
	}
	return domain.AnalysisResult{
		Question: q,
		Analysis: "Analysis unavailable: " + reason,
		Error:    reason,
	}
}

func (s *Service) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.Named("pipeline")
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}
