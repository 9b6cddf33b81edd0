package app

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"resuchain/resume-pipeline/internal/config"
	"resuchain/resume-pipeline/internal/handlers"
	"resuchain/resume-pipeline/internal/repositories"
	"resuchain/resume-pipeline/internal/services"
)

// embeddingSize matches the Gemini text-embedding-004 output.
const embeddingSize = 768

// Components is the wired ingestion pipeline shared by the API server and
// the bulk ingestion script.
type Components struct {
	ResumeRepo    repositories.ResumeRepository
	Storage       services.StorageGateway
	Parser        services.Parser
	Publisher     services.StatusPublisher
	Index         services.ResumeIndex
	ResumeService services.ResumeService
	Checkers      []handlers.Checker
}

func Build(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Components, error) {
	c := &Components{
		ResumeRepo: repositories.NewResumeRepository(db),
	}
	c.Checkers = append(c.Checkers, handlers.NewChecker("database", c.ResumeRepo.Ping))
	log.Println("✅ Repositories initialized successfully")

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Storage = storage
	log.Printf("✅ Storage initialized (%s)\n", cfg.Storage.Driver)

	var gemini services.GeminiService
	if cfg.Gemini.APIKey != "" {
		gemini, err = services.NewGeminiService(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini AI: %w", err)
		}
		log.Println("✅ Gemini AI initialized successfully")
	}

	switch cfg.Parser.Backend {
	case config.ParserBackendGemini:
		c.Parser = services.NewGeminiParser(gemini)
	default:
		client := services.NewParserClient(cfg.Parser.URL, cfg.Parser.Timeout)
		c.Parser = client
		c.Checkers = append(c.Checkers, client)
	}
	log.Printf("✅ Parser initialized (%s)\n", cfg.Parser.Backend)

	c.Index = services.NewDisabledIndex()
	if cfg.IndexEnabled() {
		store, err := services.NewQdrantStore(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, embeddingSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant: %w", err)
		}
		if err := store.InitCollection(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant collection: %w", err)
		}
		c.Index = services.NewResumeIndex(store, gemini, services.NewTextChunker())
		log.Println("✅ Qdrant initialized successfully")
	} else {
		log.Println("ℹ️  Semantic index disabled (QDRANT_URL or GEMINI_API_KEY not set)")
	}

	c.Publisher = services.NewNoopPublisher()
	if cfg.Events.RabbitMQURL != "" {
		publisher, err := services.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ publisher: %w", err)
		}
		c.Publisher = publisher
		log.Printf("✅ Status events published to exchange %s\n", cfg.Events.Exchange)
	}

	c.ResumeService = services.NewResumeService(
		c.ResumeRepo,
		c.Storage,
		services.NewTextExtractor(),
		c.Parser,
		c.Publisher,
		c.Index,
	)
	log.Println("✅ Resume service initialized")

	return c, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (services.StorageGateway, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		storage, err := services.NewS3Storage(ctx, cfg.Storage.S3, services.NewUUIDGenerator())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return storage, nil
	default:
		storage, err := services.NewLocalStorage(cfg.Storage.UploadPath, services.NewUUIDGenerator())
		if err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
		return storage, nil
	}
}

// Close releases connections held by the components.
func (c *Components) Close() {
	if err := c.Publisher.Close(); err != nil {
		log.Printf("⚠️  Failed to close status publisher: %v\n", err)
	}
}
