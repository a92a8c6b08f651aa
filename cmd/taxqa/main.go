// Package main is the taxqa CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/cli"
	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/embedding"
	"github.com/hyperjump/taxqa/internal/extract"
	"github.com/hyperjump/taxqa/internal/generation"
	"github.com/hyperjump/taxqa/internal/ingest"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/query"
	"github.com/hyperjump/taxqa/internal/retrieval"
	"github.com/hyperjump/taxqa/internal/server"
	"github.com/hyperjump/taxqa/internal/store"
	"github.com/hyperjump/taxqa/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	// A missing .env is fine; keys may come from the real environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("taxqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every subcommand.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || debugFlag
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", *configPath),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("strategy", cfg.Retrieval.Strategy),
		zap.Bool("debug", cfg.Debug),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Engine, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "corpus directory (default: ingest.directory from config)")
	outputFormat := fs.String("format", "text", "report format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	corpus := cfg.Ingest.Directory
	if *dir != "" {
		corpus = *dir
	}
	paths, err := ingest.CollectFiles(corpus, cfg.Ingest.Extensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list corpus: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open chunk store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()
	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create embedder: %v\n", err)
		os.Exit(1)
	}
	defer emb.Close()

	in := ingest.New(s, emb, extract.NewExtractor(), cfg.Ingest.ChunkSize,
		ingest.WithLogger(logger),
		ingest.WithEmbedDelay(cfg.Ingest.EmbedDelay),
		ingest.WithSourceRoot(corpus),
	)
	report, err := in.Run(ctx, paths)
	if report != nil {
		if werr := cli.WriteReport(os.Stdout, report, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
}

// askArgsReorder moves any flags (and their values) that appear after the question
// to the front so flag.Parse sees them. The flag package stops at the first non-flag
// argument, so `taxqa ask "what is VAT" -format json` would otherwise ignore -format.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins positional args so quoting the question is optional.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: taxqa ask [flags] <question>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  taxqa ask what is the VAT rate
  taxqa ask -format json "When is company income tax due?"
  taxqa ask -server http://localhost:8080 what is withholding tax
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server instead of opening the store directly")
	outputFormat := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var resp *models.ChatResponse
	if *serverURL != "" {
		resp, err = askViaHTTP(*serverURL, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath, *debug)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		resp, err = components.Engine.Answer(ctx, question)
		if err != nil {
			fmt.Fprintln(os.Stderr, models.GenericErrorMessage)
			os.Exit(1)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question string) (*models.ChatResponse, error) {
	body, err := json.Marshal(models.ChatRequest{Message: question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of opening the store directly")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *server.StatusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		s, err := store.New(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open chunk store: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		count, err := s.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		status = &server.StatusResponse{
			Chunks:         count,
			Backend:        cfg.Storage.Backend,
			Strategy:       cfg.Retrieval.Strategy,
			TopK:           cfg.Retrieval.TopK,
			EmbeddingModel: cfg.Embedding.Provider + "/" + cfg.Embedding.Model,
			ChunkSize:      cfg.Ingest.ChunkSize,
		}
		if paths := store.DataPaths(cfg.Storage); len(paths) > 0 {
			if n, err := store.DiskUsageBytes(paths...); err == nil {
				status.DiskUsageBytes = &n
			}
		}
	}

	if err := writeStatus(os.Stdout, status, *outputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func writeStatus(w io.Writer, status *server.StatusResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "text":
		fmt.Fprintf(w, "chunks:             %d   # count of stored chunks\n", status.Chunks)
		if status.DiskUsageBytes != nil {
			fmt.Fprintf(w, "disk_usage_bytes:   %d   # chunk store on disk\n", *status.DiskUsageBytes)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "backend:            %s\n", status.Backend)
		fmt.Fprintf(w, "strategy:           %s\n", status.Strategy)
		fmt.Fprintf(w, "top_k:              %d\n", status.TopK)
		fmt.Fprintf(w, "embedding_model:    %s\n", status.EmbeddingModel)
		if status.ChunkSize > 0 {
			fmt.Fprintf(w, "chunk_size:         %d\n", status.ChunkSize)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use text or json", format)
	}
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds the services behind the query pipeline.
type Components struct {
	Store     store.ChunkStore
	Embedder  embedding.Embedder
	Generator *generation.GeminiClient
	Engine    *query.Engine
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	s, err := store.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}
	c.Store = s

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	r, err := retrieval.New(s, cfg.Retrieval, retrieval.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	c.Generator, err = generation.NewGeminiClient(generation.Config{
		BaseURL:         cfg.Generation.BaseURL,
		APIKey:          cfg.Generation.APIKey,
		Model:           cfg.Generation.Model,
		Temperature:     cfg.Generation.Temperature,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		Timeout:         cfg.Generation.Timeout,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	c.Engine = query.NewEngine(c.Embedder, r, c.Generator, query.WithLogger(logger))
	logger.Info("query pipeline initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("strategy", r.Strategy()),
		zap.Int("top_k", r.TopK()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_model", cfg.Generation.Model),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`taxqa - Grounded question answering over tax and legal documents

Usage:
  taxqa server [flags]           Start the HTTP server
  taxqa ingest [flags]           Rebuild the chunk store from the corpus directory
  taxqa ask [flags] <question>   Answer a question with cited sources
  taxqa status [flags]           Show chunk store and configuration status
  taxqa version                  Show version
  taxqa help                     Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --dir string       Corpus directory (default: ingest.directory from config)
  --format string    Report format: text or json (default: text)

Ask Flags:
  --server string    Server URL; empty opens the chunk store directly
  --format string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL; empty opens the chunk store directly
  --format string    Output format: text or json (default: text)

Environment:
  GEMINI_API_KEY     API key for embedding and generation (a .env file is read if present)

Examples:
  taxqa ingest --dir ./documents
  taxqa ask what is the VAT rate
  taxqa ask --format json "When is company income tax due?"
  taxqa server
  taxqa status --format json`)
}
