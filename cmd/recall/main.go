// Package main is the Recall CLI entry point.
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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/cli"
	"github.com/hireloop/recall/internal/config"
	"github.com/hireloop/recall/internal/embedding"
	"github.com/hireloop/recall/internal/extract"
	"github.com/hireloop/recall/internal/ingest"
	"github.com/hireloop/recall/internal/keyword"
	"github.com/hireloop/recall/internal/llm"
	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/internal/rag"
	"github.com/hireloop/recall/internal/server"
	"github.com/hireloop/recall/internal/storage"
	"github.com/hireloop/recall/internal/vector"
	"github.com/hireloop/recall/internal/watcher"
	"github.com/hireloop/recall/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/recall/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config. Returns the config and the path actually used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; the OPENAI_API_KEY may come from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "candidates":
		runCandidates()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("recall version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var intake *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Intake.Directories) > 0 {
		ing := components.Ingestor
		store := components.Storage
		intake = watcher.NewWatcher(
			cfg.Intake.Directories,
			cfg.Intake.Extensions,
			func(path string) {
				if _, err := ing.IngestFile(context.Background(), path, ""); err != nil {
					logger.Warn("intake ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				c, err := store.FindByFilePath(context.Background(), path)
				if err != nil {
					return
				}
				if err := ing.Delete(context.Background(), c.ID); err != nil {
					logger.Warn("intake remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := intake.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		intake.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Ingestor,
		components.Storage,
		components.KeywordIndex,
		components.VectorIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if intake != nil {
		intake.Stop()
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reorderArgs moves flags (and their values) that appear after positional
// arguments to the front so flag.Parse sees them. Go's flag package stops at
// the first non-flag argument, so "recall ask who knows Go -top-k 3" would
// otherwise leave -top-k unparsed.
func reorderArgs(args []string) []string {
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

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	candidate := fs.String("candidate", "", "scope the question to one candidate (ID, or name in direct mode)")
	topK := fs.Int("top-k", 0, "number of context chunks to retrieve (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: recall ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		req := models.QueryRequest{Question: question, CandidateID: *candidate, TopK: *topK}
		var answer models.Answer
		if err := postJSON(*serverURL+"/api/v1/query", req, &answer); err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, &answer, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, cleanup := mustComponents(*configPath)
	defer cleanup()

	ctx := context.Background()
	candidateID, err := resolveCandidate(ctx, components.Storage, *candidate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Candidate not found: %s\n", *candidate)
		os.Exit(1)
	}
	answer, err := components.Engine.AnswerQuestion(ctx, question, candidateID, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// resolveCandidate turns a candidate reference into an ID. An exact ID wins;
// otherwise the reference is treated as a name and fuzzy-matched.
func resolveCandidate(ctx context.Context, store storage.Storage, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if _, err := store.GetCandidate(ctx, ref); err == nil {
		return ref, nil
	}
	c, err := store.FindByName(ctx, ref)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	candidate := fs.String("candidate", "", "scope the search to one candidate (ID, or name in direct mode)")
	topK := fs.Int("top-k", 0, "number of results (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: recall search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		req := models.SearchRequest{Query: query, CandidateID: *candidate, TopK: *topK}
		var response models.SearchResponse
		if err := postJSON(*serverURL+"/api/v1/search", req, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, &response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, cleanup := mustComponents(*configPath)
	defer cleanup()

	ctx := context.Background()
	candidateID, err := resolveCandidate(ctx, components.Storage, *candidate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Candidate not found: %s\n", *candidate)
		os.Exit(1)
	}
	results, err := components.Engine.Search(ctx, query, candidateID, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.SearchResponse{Query: query, Results: results, Total: len(results)}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	name := fs.String("name", "", "candidate name override (single file only)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: recall ingest [flags] <cv-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, cleanup := mustComponents(*configPath)
	defer cleanup()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read directory: %v\n", err)
			os.Exit(1)
		}
		ingested := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			file := filepath.Join(path, entry.Name())
			if !extract.Supported(strings.ToLower(filepath.Ext(file))) {
				continue
			}
			c, err := components.Ingestor.IngestFile(ctx, file, "")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Skipped %s: %v\n", entry.Name(), err)
				continue
			}
			fmt.Printf("Ingested %s: %s (%s)\n", entry.Name(), c.Name, c.ID)
			ingested++
		}
		fmt.Printf("Ingested %d CV(s) from %s\n", ingested, path)
		return
	}

	c, err := components.Ingestor.IngestFile(ctx, path, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("CV ingested: %s (%s)\n", c.Name, c.ID)
}

func runCandidates() {
	fs := flag.NewFlagSet("candidates", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var candidates []models.CandidateSummary
	if *serverURL != "" {
		var out struct {
			Candidates []models.CandidateSummary `json:"candidates"`
		}
		if err := getJSON(*serverURL+"/api/v1/candidates", &out); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		candidates = out.Candidates
	} else {
		components, cleanup := mustComponents(*configPath)
		defer cleanup()
		candidates, err = components.Storage.ListCandidates(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteCandidates(os.Stdout, candidates, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: recall delete [flags] <candidate-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/candidates/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Candidate deleted: %s\n", id)
		return
	}

	components, cleanup := mustComponents(*configPath)
	defer cleanup()
	ctx := context.Background()
	candidate, err := components.Storage.GetCandidate(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Ingestor.Delete(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if candidate.FilePath != "" {
		if err := os.Remove(candidate.FilePath); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not remove %s: %v\n", candidate.FilePath, err)
		}
	}
	fmt.Printf("Candidate deleted: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status map[string]interface{}
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, cleanup := mustComponents(*configPath)
		defer cleanup()
		ctx := context.Background()
		count, err := components.Storage.CountCandidates(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count candidates failed: %v\n", err)
			os.Exit(1)
		}
		keywordDocs, err := components.KeywordIndex.DocCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Keyword doc count failed: %v\n", err)
			os.Exit(1)
		}
		stats := components.VectorIndex.Stats()
		status = map[string]interface{}{
			"candidates":     count,
			"keyword_chunks": keywordDocs,
			"vector_index": map[string]interface{}{
				"count":      stats.Count,
				"dimension":  stats.Dimension,
				"tombstoned": stats.Tombstoned,
			},
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  *vector.FlatIndex
	KeywordIndex keyword.Index
	Engine       *rag.Engine
	Ingestor     *ingest.Ingestor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// mustComponents loads config and initializes services for direct-storage
// commands, exiting on failure. The returned cleanup closes everything.
func mustComponents(configPath string) (*Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	embedder, err := embedding.New(cfg.Embedding, apiKey)
	if err != nil {
		logger.Warn("embedder unavailable, falling back to mock embeddings", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, err := vector.Load(cfg.Storage.VectorIndexPath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var generator llm.Generator
	var parser llm.Parser
	var extractor llm.FilterExtractor
	client, err := llm.NewOpenAIClient(cfg.LLM, apiKey, llm.WithLogger(logger))
	if err != nil {
		logger.Warn("LLM client unavailable, answers will be degraded", zap.Error(err))
		offline := llm.Offline{}
		generator, parser, extractor = offline, offline, offline
	} else {
		generator, parser, extractor = client, client, client
	}

	engine := rag.NewEngine(store, vectorIndex, embedder, generator, extractor,
		cfg.Retrieval, rag.WithLogger(logger))
	ing := ingest.NewIngestor(store, parser, embedder, vectorIndex, keywordIndex,
		extract.NewExtractor(), cfg.Storage.VectorIndexPath, ingest.WithLogger(logger))

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Ingestor:     ing,
	}, nil
}

func printUsage() {
	fmt.Println(`recall - CV question answering and retrieval

Usage:
  recall server [flags]              Start the HTTP API server
  recall ask [flags] <question>      Ask a question about the candidates
  recall search [flags] <query>      Semantic search over CV chunks
  recall ingest [flags] <file|dir>   Ingest CV file(s)
  recall candidates [flags]          List candidates
  recall delete [flags] <id>         Delete a candidate
  recall status [flags]              Show storage and index status
  recall version                     Show version
  recall help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/recall/config.yaml)
  --debug            Enable debug logging

Ask / Search Flags:
  --config string     Config file path (for direct storage mode)
  --server string     Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --candidate string  Scope to one candidate: ID, or name in direct mode
  --top-k int         Number of chunks/results to retrieve (0 = config default)
  --output string     Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path
  --name string      Candidate name override (single file only)

Examples:
  recall server
  recall ask who has worked with Kubernetes
  recall ask --candidate "Jane Smith" --server "" what are her strongest skills
  recall search --top-k 3 machine learning experience
  recall ingest resumes/jane_smith.pdf
  recall candidates --output json
  recall status`)
}
