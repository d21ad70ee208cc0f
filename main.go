package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasterchat/ragcore/answer"
	"github.com/fasterchat/ragcore/api"
	"github.com/fasterchat/ragcore/chunk"
	"github.com/fasterchat/ragcore/config"
	"github.com/fasterchat/ragcore/core"
	"github.com/fasterchat/ragcore/database"
	"github.com/fasterchat/ragcore/embeddings"
	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/ingestion"
	"github.com/fasterchat/ragcore/llm"
	"github.com/fasterchat/ragcore/retrieval"
	"github.com/fasterchat/ragcore/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "remove":
		removeCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	title := flags.String("title", "", "document title (defaults to the file name)")
	parallelism := flags.Int("parallelism", 4, "number of documents processed concurrently")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}
	if flags.NArg() == 0 {
		logger.Fatal("ingest requires at least one file path")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, svc := buildService(ctx, cfg, logger)
	defer pool.Close()

	uploads := make([]ingestion.Upload, 0, flags.NArg())
	for _, path := range flags.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatalf("read %s: %v", path, err)
		}
		fileType, err := extract.DetectFileType(path)
		if err != nil {
			logger.Fatalf("%s: %v", path, err)
		}
		documentTitle := *title
		if documentTitle == "" {
			documentTitle = filepath.Base(path)
		}
		uploads = append(uploads, ingestion.Upload{
			DocumentID: uuid.NewString(),
			Title:      documentTitle,
			FileType:   fileType,
			Data:       data,
		})
	}

	if err := svc.IngestAll(ctx, uploads, *parallelism); err != nil {
		logger.Fatalf("ingestion finished with failures: %v", err)
	}
	logger.Printf("ingested %d document(s)", len(uploads))
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask against the indexed documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, svc := buildService(ctx, cfg, logger)
	defer pool.Close()

	result, err := svc.Ask(ctx, *question, nil)
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	fmt.Println(result.Text)
	if result.UsedDocuments {
		fmt.Println()
		fmt.Println("(answered using your documents)")
	}
}

func removeCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("remove", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse remove flags: %v", err)
	}
	if flags.NArg() != 1 {
		logger.Fatal("remove requires exactly one document id")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, svc := buildService(ctx, cfg, logger)
	defer pool.Close()

	documentID := flags.Arg(0)
	if err := svc.Remove(ctx, documentID); err != nil {
		logger.Fatalf("remove failed: %v", err)
	}
	logger.Printf("removed document %s", documentID)
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", ":8080", "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, svc := buildService(ctx, cfg, logger)
	defer pool.Close()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(svc, cfg.MaxUploadBytes, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

// buildService wires the pipeline from configuration. Every client handle is
// constructed here and passed down; nothing is package-global.
func buildService(ctx context.Context, cfg config.Config, logger *log.Logger) (*pgxpool.Pool, *core.Service) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	index := vectorstore.NewPostgres(pool)
	docs := database.NewPostgresDocumentStore(pool)
	splitter := chunk.NewSplitter(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)

	pipeline := ingestion.NewService(docs, embedder, index, splitter, cfg.Namespace, cfg.MaxUploadBytes, logger)
	engine := retrieval.NewEngine(embedder, index, cfg.Namespace, logger)
	composer := answer.NewComposer(
		llmClient,
		answer.SufficiencyRule(cfg.Answer.SufficiencyRule),
		cfg.Answer.SufficiencyThreshold,
		logger,
	)

	svc := core.New(pipeline, engine, composer, retrieval.Params{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
	}, docs, logger)

	return pool, svc
}

func printUsage() {
	fmt.Println("Usage: ragcore <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Index one or more documents (pdf, docx, txt, md)")
	fmt.Println("  ask      Ask a question against the indexed documents")
	fmt.Println("  remove   Remove a document and its chunks from the index")
	fmt.Println("  serve    Run the HTTP JSON API")
}
