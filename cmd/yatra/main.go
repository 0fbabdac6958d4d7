package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ftbhabuk/yatra/internal/config"
	"github.com/ftbhabuk/yatra/internal/gemini"
	"github.com/ftbhabuk/yatra/internal/places"
	"github.com/ftbhabuk/yatra/internal/search"
	"github.com/ftbhabuk/yatra/internal/server"
	"github.com/ftbhabuk/yatra/internal/service"
	"github.com/ftbhabuk/yatra/internal/textproc"
	"github.com/ftbhabuk/yatra/internal/vectorstore"
	"github.com/ftbhabuk/yatra/internal/vectorstore/memory"
	"github.com/ftbhabuk/yatra/internal/vectorstore/pinecone"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/yatra/config.yaml if not provided)")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := log.Default()
	planner := assemblePlanner(cfg, logger)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(planner, server.Config{Qualifier: cfg.Qualifier, Logger: logger}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	go func() {
		log.Printf("yatra listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
}

func assemblePlanner(cfg *config.AppConfig, logger *log.Logger) *service.Planner {
	embedder := gemini.NewClient(gemini.Config{
		BaseURL:         cfg.Gemini.BaseURL,
		APIKey:          os.Getenv(config.EnvGoogleKey),
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		GenerationModel: cfg.Gemini.GenerationModel,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Timeout:         time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
	})

	searcher := search.NewExaClient(search.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  os.Getenv(config.EnvExaKey),
		Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second,
	})

	finder := places.NewGoogleClient(places.Config{
		BaseURL:        cfg.Maps.BaseURL,
		APIKey:         os.Getenv(config.EnvMapsKey),
		Qualifier:      cfg.Qualifier,
		RadiusMeters:   cfg.Maps.RadiusMeters,
		MaxAttractions: cfg.Maps.MaxAttractions,
		Timeout:        time.Duration(cfg.Maps.TimeoutSecs) * time.Second,
		Logger:         logger,
	})

	var store vectorstore.Store
	switch cfg.VectorStore.Type {
	case "memory":
		store = memory.NewStore()
	case "pinecone", "":
		store = pinecone.NewStore(pinecone.Config{
			BaseURL: cfg.VectorStore.Pinecone.BaseURL,
			APIKey:  os.Getenv(config.EnvPineconeKey),
			Cloud:   cfg.VectorStore.Pinecone.Cloud,
			Region:  cfg.VectorStore.Pinecone.Region,
			Timeout: time.Duration(cfg.VectorStore.Pinecone.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	chunker := textproc.NewWordChunker(cfg.Chunker.ChunkSizeWords, cfg.Chunker.OverlapWords, cfg.Chunker.MinChunkChars)
	guides := service.NewGuideCache(store, embedder, cfg.VectorStore.GuidesIndex, cfg.Qualifier, logger)
	chunks := service.NewChunkStore(service.ChunkStoreConfig{
		Store:            store,
		Embedder:         embedder,
		Searcher:         searcher,
		Chunker:          chunker,
		IndexName:        cfg.VectorStore.ChunksIndex,
		Qualifier:        cfg.Qualifier,
		NumResults:       cfg.Search.NumResults,
		MinDocumentWords: cfg.Chunker.MinDocumentWords,
		Logger:           logger,
	})

	return service.NewPlanner(service.PlannerConfig{
		Guides:      guides,
		Chunks:      chunks,
		Attractions: finder,
		Generator:   embedder,
		MissingKeys: config.MissingKeys,
		Logger:      logger,
	})
}
