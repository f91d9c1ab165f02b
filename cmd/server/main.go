package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dataguard/compliguard/internal/api"
	"github.com/dataguard/compliguard/internal/audit"
	"github.com/dataguard/compliguard/internal/chunker"
	"github.com/dataguard/compliguard/internal/clients/openai"
	"github.com/dataguard/compliguard/internal/clients/pinecone"
	"github.com/dataguard/compliguard/internal/config"
	"github.com/dataguard/compliguard/internal/ingest"
	"github.com/dataguard/compliguard/internal/llm"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/regparser"
	"github.com/dataguard/compliguard/internal/store"
	"github.com/dataguard/compliguard/internal/vectorindex"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Command line flag for DPDP Act ingestion
	ingestActPath := flag.String("ingest-act", "", "Parse and index the DPDP Act text file at the given path, then exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer dbStore.Close()

	// Vector index gateway over Pinecone and OpenAI embeddings
	pineconeClient, err := pinecone.New(log, pinecone.Config{APIKey: cfg.PineconeAPIKey})
	if err != nil {
		log.Fatal("Failed to initialize Pinecone client", "error", err)
	}
	embedder, err := openai.New(log, openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimension,
	})
	if err != nil {
		log.Fatal("Failed to initialize embeddings client", "error", err)
	}
	gateway, err := vectorindex.NewGateway(log, pineconeClient, embedder,
		cfg.PineconeIndex, cfg.EmbeddingDimension, cfg.PineconeCloud, cfg.PineconeRegion)
	if err != nil {
		log.Fatal("Failed to initialize vector index gateway", "error", err)
	}

	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration", "error", err)
	}

	// Handle DPDP Act ingestion if flag is set
	if *ingestActPath != "" {
		parser := regparser.New(log, dbStore, gateway, splitter)
		ctx := context.Background()
		count, err := parser.ParseFile(ctx, *ingestActPath)
		if err != nil {
			log.Fatal("DPDP Act ingestion failed", "error", err)
		}
		log.Info("DPDP Act ingestion complete", "sections", count)
		return
	}

	ctx := context.Background()
	analyzer, err := llm.NewAnalyzer(ctx, log, cfg.GeminiAPIKey, cfg.GeminiModel,
		cfg.PrioritySectionMin, cfg.PrioritySectionMax)
	if err != nil {
		log.Fatal("Failed to initialize analyzer", "error", err)
	}
	defer analyzer.Close()

	ingestService := ingest.NewService(log, dbStore, gateway, splitter)
	workflow, err := audit.NewWorkflow(log, dbStore, gateway, analyzer)
	if err != nil {
		log.Fatal("Failed to initialize audit workflow", "error", err)
	}

	// Initialize API Handler and Router
	handler := api.NewHandler(log, ingestService, workflow, dbStore, cfg.UploadDir)
	router := api.NewRouter(handler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Audit runs embed, retrieve and LLM calls
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Info("Starting server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen", "addr", serverAddr, "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exiting gracefully")
}
