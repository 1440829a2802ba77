package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/survey-insight/internal/domain/ai"
	"github.com/bryanwahyu/survey-insight/internal/domain/survey"
)

const (
	DefaultMaxTokens = 2000
	DefaultTimeout   = 60 * time.Second
)

// Options tune a Service. Zero values fall back to the defaults above;
// RequestsPerSecond <= 0 disables throttling.
type Options struct {
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Service sends one prompt pair to the model per call. It keeps no state
// between calls apart from the optional throttle, and never retries.
type Service struct {
	client    ai.Client
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	log       *zap.Logger
}

func NewService(client ai.Client, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		client:    client,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		log:       log.Named("ai"),
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return s
}

// Invoke returns the raw analysis text for q. Every failure, including a
// timeout or an empty answer, comes back as *survey.InvocationError.
func (s *Service) Invoke(ctx context.Context, pair survey.PromptPair, q survey.Question) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", &survey.InvocationError{Question: q, Cause: fmt.Errorf("throttle: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.client.Complete(ctx, ai.Request{
		System:    pair.System,
		User:      pair.User,
		MaxTokens: s.maxTokens,
	})
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ai.ErrEmptyCompletion
	}
	if err != nil {
		// a deadline hit inside the client surfaces as the client's own error;
		// keep the context error reachable for callers
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		s.log.Warn("ai.invoke.error",
			zap.String("question", string(q)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", &survey.InvocationError{Question: q, Cause: err}
	}

	s.log.Debug("ai.invoke.ok",
		zap.String("question", string(q)),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", elapsed))
	return text, nil
}
