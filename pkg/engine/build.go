package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/config"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/crypto"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/embeddings"
	embeddingsollama "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/embeddings/ollama"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
	eventstreamkafka "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream/kafka"
	eventstreamnop "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream/nop"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/indexer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/llm"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/quarantine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/inmemory"
	storepostgres "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/postgres"
	storesqlite "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/sqlite"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/summarizer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/validate"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/bruteforce"
	vectorchromem "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/chromem"
	vectorsqlitevec "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/sqlitevec"
)

// Build assembles a full engine from configuration: store, index, embedder,
// generator, pipeline, router and summarizer. The returned cleanup function
// closes everything in reverse dependency order.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, func(), error) {
	storeDriver, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	vectorDriver, err := buildVector(cfg, logger)
	if err != nil {
		storeDriver.Close()
		return nil, nil, err
	}

	embedder := buildEmbedder(cfg)

	generate, err := llm.NewGenerator(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.Target,
	})
	if err != nil {
		vectorDriver.Close()
		storeDriver.Close()
		return nil, nil, fmt.Errorf("building generator: %w", err)
	}

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		vectorDriver.Close()
		storeDriver.Close()
		return nil, nil, err
	}

	pool, err := indexer.NewPool(&indexer.Config{
		VectorDriver: vectorDriver,
		Embedder:     embedder,
		Logger:       logger,
	})
	if err != nil {
		publisher.Close()
		vectorDriver.Close()
		storeDriver.Close()
		return nil, nil, fmt.Errorf("starting indexer: %w", err)
	}

	cache, err := retrieval.NewCache()
	if err != nil {
		pool.Close()
		publisher.Close()
		vectorDriver.Close()
		storeDriver.Close()
		return nil, nil, fmt.Errorf("creating hot-context cache: %w", err)
	}

	router := retrieval.NewRouter(retrieval.Config{
		Store:           storeDriver,
		Vector:          vectorDriver,
		Embedder:        embedder,
		Cache:           cache,
		Logger:          logger,
		SubQueryTimeout: time.Duration(cfg.Retrieval.SubQueryTimeoutMS) * time.Millisecond,
		TopK:            int(cfg.Retrieval.TopK),
	})

	validator := validate.NewValidator(validate.Config{
		Store:    storeDriver,
		Vector:   vectorDriver,
		Embedder: embedder,
		Generate: generate,
		Logger:   logger,
	})

	pipeline := quarantine.NewPipeline(quarantine.Config{
		Store:     storeDriver,
		Validator: validator,
		Logger:    logger,
		Indexer:   pool,
		Publisher: publisher,
	})

	summ := summarizer.NewSummarizer(summarizer.Config{
		Store:    storeDriver,
		Pipeline: pipeline,
		Generate: generate,
		Logger:   logger,
		Model:    cfg.LLM.Model,
	})

	eng := New(Config{
		Store:      storeDriver,
		Router:     router,
		Pipeline:   pipeline,
		Summarizer: summ,
		Indexer:    pool,
		Logger:     logger,
	})

	cleanup := func() {
		pool.Close()
		cache.Close()
		if err := publisher.Close(); err != nil {
			logger.Warn("closing publisher", zap.Error(err))
		}
		if err := embedder.Close(); err != nil {
			logger.Warn("closing embedder", zap.Error(err))
		}
		if err := vectorDriver.Close(); err != nil {
			logger.Warn("closing vector driver", zap.Error(err))
		}
		if err := storeDriver.Close(); err != nil {
			logger.Warn("closing store driver", zap.Error(err))
		}
	}

	return eng, cleanup, nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Driver, error) {
	var codec *crypto.Codec
	if cfg.Storage.EncryptionKey != "" {
		key, err := crypto.StringToKey(cfg.Storage.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decoding encryption key: %w", err)
		}
		codec, err = crypto.NewCodec(key)
		if err != nil {
			return nil, fmt.Errorf("building content codec: %w", err)
		}
	}

	switch cfg.Storage.Provider {
	case "memory":
		return inmemory.NewDriver(), nil
	case "sqlite", "":
		return storesqlite.NewDriver(storesqlite.Config{
			DBPath: cfg.Storage.SQLitePath,
			Codec:  codec,
		}, logger)
	case "postgres":
		return storepostgres.NewDriver(ctx, storepostgres.Config{
			ConnStr: cfg.Storage.PostgresConn,
			Codec:   codec,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildVector(cfg *config.Config, logger *zap.Logger) (vector.Driver, error) {
	switch cfg.VectorStore.Provider {
	case "bruteforce":
		return bruteforce.NewDriver(), nil
	case "sqlitevec", "":
		return vectorsqlitevec.NewDriver(vectorsqlitevec.Config{
			DBPath:     cfg.VectorStore.SQLitePath,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger)
	case "chromem":
		return vectorchromem.NewDriver(logger), nil
	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}
}

func buildEmbedder(cfg *config.Config) embeddings.Embedder {
	return embeddingsollama.NewEmbedder(embeddingsollama.Config{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	})
}

func buildPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.EventStream.Provider {
	case "kafka":
		return eventstreamkafka.NewPublisher(eventstreamkafka.Config{
			Brokers: cfg.EventStream.Brokers,
			Topic:   cfg.EventStream.Topic,
		}, logger)
	case "nop", "":
		return eventstreamnop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown event stream provider %q", cfg.EventStream.Provider)
	}
}
