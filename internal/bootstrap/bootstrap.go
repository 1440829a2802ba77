// Package bootstrap wires the analysis pipeline from configuration. Both the
// HTTP server and the CLI build their pipeline here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/survey-insight/internal/application"
	appai "github.com/bryanwahyu/survey-insight/internal/application/ai"
	appsurvey "github.com/bryanwahyu/survey-insight/internal/application/survey"
	"github.com/bryanwahyu/survey-insight/internal/config"
	domai "github.com/bryanwahyu/survey-insight/internal/domain/ai"
	"github.com/bryanwahyu/survey-insight/internal/infra/ai/openai"
	"github.com/bryanwahyu/survey-insight/internal/infra/storage"
	"github.com/bryanwahyu/survey-insight/internal/infra/tabular"
)

// AIClient builds the model client for the configured provider.
func AIClient(cfg *config.Config) (domai.Client, error) {
	switch cfg.AI.Provider {
	case config.ProviderAzure:
		return openai.NewAzureClient(
			cfg.AzureOpenAI.Endpoint,
			cfg.AzureOpenAI.APIKey,
			cfg.AzureOpenAI.DeploymentName,
			cfg.AzureOpenAI.APIVersion,
		), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// Pipeline builds the orchestrator around client. The returned store is nil
// unless the upload archive is enabled.
func Pipeline(ctx context.Context, cfg *config.Config, client domai.Client, obs appsurvey.Observer, log *zap.Logger) (*appsurvey.Service, *storage.Store, error) {
	invoker := appai.NewService(client, appai.Options{
		MaxTokens:         cfg.AI.MaxTokens,
		Timeout:           cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Burst:             cfg.AI.Burst,
	}, log)

	svc := &appsurvey.Service{
		Decoder:     tabular.NewDecoder(tabular.RowPolicy(cfg.Pipeline.RowPolicy)),
		Invoker:     invoker,
		Observer:    obs,
		Clock:       application.SystemClock{},
		Logger:      log,
		Concurrency: cfg.Pipeline.Concurrency,
		Policy:      appsurvey.FailurePolicy(cfg.Pipeline.FailurePolicy),
	}

	if !cfg.Minio.Enabled {
		return svc, nil, nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("minio init: %w", err)
	}
	svc.Archive = store
	return svc, store, nil
}
