// Package app assembles the runtime object graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/tutorai/internal/config"
	"github.com/cloo-solutions/tutorai/internal/database"
	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/index"
	"github.com/cloo-solutions/tutorai/internal/jobs"
	"github.com/cloo-solutions/tutorai/internal/openai"
	"github.com/cloo-solutions/tutorai/internal/repository"
	"github.com/cloo-solutions/tutorai/internal/service"
	"github.com/cloo-solutions/tutorai/internal/storage"
	"github.com/cloo-solutions/tutorai/internal/wiki"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrModelsNotConfigured is returned by BuildServices without an OpenAI key.
var ErrModelsNotConfigured = errors.New("TUTOR_OPENAI_API_KEY is required to embed and answer")

// Dependencies holds every long-lived component. Fields backed by optional
// infrastructure are nil when that infrastructure is not configured.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Pool      *pgxpool.Pool
	Index     *index.Index
	Jobs      *repository.EnrichmentJobRepository
	S3        *storage.S3Client
	Snapshots *storage.Snapshotter

	Embedder   *openai.Client
	Assistant  *openai.Assistant
	Wiki       *wiki.Client
	Enricher   *service.Enricher
	Controller *service.Controller
	Worker     *jobs.Worker

	workerStarted bool
}

// Open connects storage and loads the index. Without a database the index
// lives in memory, seeded from the latest S3 snapshot when one exists.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dependencies{Config: cfg, Logger: logger}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		d.S3 = s3Client
		d.Snapshots = storage.NewSnapshotter(s3Client, cfg.S3SnapshotPrefix, logger.Named("snapshot"))
	}

	var store index.Store
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, err
		}
		d.Pool = pool
		d.Jobs = repository.NewEnrichmentJobRepository(pool)
		store = repository.NewChunkIndexRepository(pool)
	} else {
		mem, err := d.seedFromSnapshot(ctx)
		if err != nil {
			d.Close()
			return nil, err
		}
		store = mem
	}

	ix, err := index.Open(ctx, store, index.Options{
		Dimension: cfg.EmbeddingDimensions,
		Logger:    logger.Named("index"),
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Index = ix

	return d, nil
}

func (d *Dependencies) seedFromSnapshot(ctx context.Context) (*index.MemoryStore, error) {
	if d.Snapshots == nil {
		return index.NewMemoryStore(), nil
	}
	records, _, err := d.Snapshots.Pull(ctx)
	switch {
	case err == nil:
		return index.NewMemoryStore(records...), nil
	case errors.Is(err, domain.ErrSnapshotNotFound):
		d.Logger.Info("no index snapshot found, starting empty")
		return index.NewMemoryStore(), nil
	case errors.Is(err, domain.ErrIndexCorrupt):
		// The consistent prefix stays readable; writes wait for a repaired snapshot.
		d.Logger.Warn("index snapshot inconsistent, opening read-only", zap.Error(err))
		return index.NewCorruptMemoryStore(err, records...), nil
	default:
		return nil, fmt.Errorf("failed to pull index snapshot: %w", err)
	}
}

// BuildServices creates the model clients, the enricher, the controller and,
// with a database, the enrichment worker. The worker is not started.
func (d *Dependencies) BuildServices() error {
	cfg := d.Config
	if !cfg.HasOpenAI() {
		return ErrModelsNotConfigured
	}

	ladder, err := cfg.Ladder()
	if err != nil {
		return err
	}

	d.Embedder = openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	d.Assistant = openai.NewAssistant(openai.NewChatAdapter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel))
	d.Wiki = wiki.NewClient(wiki.Config{
		APIURL:            cfg.WikiAPIURL,
		RequestsPerSecond: cfg.WikiRequestsPerSecond,
		Logger:            d.Logger.Named("wiki"),
	})

	d.Enricher = service.NewEnricher(d.Wiki, d.Assistant, d.Embedder, d.Index, service.EnricherConfig{
		Segment:          d.SegmentConfig(),
		ExcludedSections: cfg.ExcludedSections,
	}, d.Logger.Named("enricher"))

	d.Controller = service.NewController(d.Index, d.Embedder, d.Assistant, d.Enricher, service.ControllerConfig{
		Ladder:         ladder,
		CategoryWeight: cfg.CategoryWeight,
		MaxEnrichments: cfg.MaxEnrichments,

		MaxRetrievalAttempts: cfg.MaxRetrievalAttempts,
	}, d.Logger.Named("controller"))

	if d.Jobs != nil {
		processor := jobs.NewEnrichmentWorker(d.Jobs, d.Enricher, d.Logger.Named("worker"))
		d.Worker = jobs.NewWorker(processor, cfg.WorkerPollInterval, d.Logger.Named("worker"))
	}

	return nil
}

// StartWorker runs the enrichment worker in the background. It reports
// false when no job queue is configured.
func (d *Dependencies) StartWorker(ctx context.Context) bool {
	if d.Worker == nil || d.workerStarted {
		return d.workerStarted
	}
	d.workerStarted = true
	go d.Worker.Start(ctx)
	return true
}

// SegmentConfig maps the chunking settings onto the segmenter.
func (d *Dependencies) SegmentConfig() service.SegmentConfig {
	seg := service.DefaultSegmentConfig()
	seg.MaxTokens = d.Config.MaxChunkTokens
	seg.MinTokens = d.Config.MinChunkTokens
	seg.Iterations = d.Config.AnnealIterations
	seg.CoolingRate = d.Config.CoolingRate
	return seg
}

// Close stops the worker and releases connections. It is safe to call on a
// partially opened Dependencies.
func (d *Dependencies) Close() {
	if d.workerStarted {
		d.Worker.Stop()
	}
	if d.Index != nil {
		_ = d.Index.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
