package bootstrap

import (
	"context"
	"fmt"

	"github.com/covenantlabs/covenant/internal/config"
	"github.com/covenantlabs/covenant/internal/core/ports"
	"github.com/covenantlabs/covenant/internal/core/usecase"
	"github.com/covenantlabs/covenant/internal/infrastructure/embedding/ollama"
	"github.com/covenantlabs/covenant/internal/infrastructure/lexical/meili"
	"github.com/covenantlabs/covenant/internal/infrastructure/metadata/postgres"
	natsqueue "github.com/covenantlabs/covenant/internal/infrastructure/queue/nats"
	"github.com/covenantlabs/covenant/internal/infrastructure/resilience"
	"github.com/covenantlabs/covenant/internal/infrastructure/vector/pgvector"
	"github.com/covenantlabs/covenant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue     *natsqueue.Queue
	Contracts ports.ContractReader
	AskUC     ports.QuestionService

	rules     usecase.LanguageRules
	lexical   ports.LexicalIndex
	vector    ports.VectorIndex
	store     *postgres.ContractStore
	directory *postgres.Directory

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := config.LoadLanguageRules(cfg.LanguageRulesPath)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewContractStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure contract schema: %w", err)
	}
	directory, err := postgres.NewDirectory(db, cfg.ExcerptCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init party directory: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	lexical := meili.New(cfg.MeiliURL, cfg.MeiliAPIKey, cfg.MeiliIndex, 0)
	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{Executor: executor})

	var (
		vector  ports.VectorIndex
		closers []func()
	)
	switch cfg.VectorBackend {
	case config.VectorBackendPGVector:
		pool, err := pgvector.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector pool: %w", err)
		}
		vstore := pgvector.NewStore(pool, embedder)
		if err := vstore.EnsureSchema(ctx, cfg.EmbeddingDims); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure chunk schema: %w", err)
		}
		vector = vstore
		closers = append(closers, pool.Close)
	default:
		vector = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder, qdrant.Options{Executor: executor})
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResultsSubject:     cfg.NATSResultsSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	app := &App{
		Config:    cfg,
		Queue:     queue,
		Contracts: usecase.NewContractUseCase(store),

		rules:     rules,
		lexical:   lexical,
		vector:    vector,
		store:     store,
		directory: directory,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}
	app.AskUC, err = app.NewAskService(cfg.FusionWeightLexical, cfg.FusionWeightVector)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewAskService assembles a question pipeline over the app's live backends
// with explicit fusion weights. The benchmark CLI sweeps weight combinations
// through here without reconnecting every client.
func (a *App) NewAskService(weightLexical, weightVector float64) (ports.QuestionService, error) {
	retriever, err := usecase.NewFusionRetriever(a.lexical, a.vector, usecase.FusionConfig{
		WeightLexical: weightLexical,
		WeightVector:  weightVector,
		RRFK:          a.Config.FusionRRFK,
		TopK:          a.Config.FusionTopK,
		Timeout:       a.Config.FusionTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return usecase.NewAskUseCase(
		usecase.NewNormalizerWithRules(a.rules),
		usecase.NewClassifierWithRules(a.rules),
		usecase.NewEntityResolver(a.directory),
		usecase.NewMetadataShortcut(a.store),
		retriever,
		usecase.NewCitationAssembler(0, -1),
		a.store,
	), nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
