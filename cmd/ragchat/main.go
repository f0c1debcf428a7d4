package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/badger"
	"github.com/fwojciec/ragchat/fs"
	"github.com/fwojciec/ragchat/gemini"
	raggin "github.com/fwojciec/ragchat/gin"
	"github.com/fwojciec/ragchat/goquery"
	"github.com/fwojciec/ragchat/htmltomarkdown"
	raghttp "github.com/fwojciec/ragchat/http"
	"github.com/fwojciec/ragchat/openai"
	"github.com/fwojciec/ragchat/pdf"
	"github.com/fwojciec/ragchat/prompt"
	"github.com/fwojciec/ragchat/rag"
	"github.com/fwojciec/ragchat/readability"
	"github.com/fwojciec/ragchat/sqlite"
	"github.com/fwojciec/ragchat/tiktoken"
	"github.com/fwojciec/ragchat/toml"
	"github.com/fwojciec/ragchat/trafilatura"
	"github.com/fwojciec/ragchat/xinference"
	"github.com/fwojciec/ragchat/yaml"
	ragzap "github.com/fwojciec/ragchat/zap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Configuration file path. Empty uses toml.DefaultPath. The --config
	// flag takes precedence.
	ConfigPath string

	// Config is the loaded configuration.
	Config *toml.Config

	Logger *zap.Logger

	// SQLite database, when the sqlite backend is configured.
	DB *sqlite.DB

	// Store is the connected vector store.
	Store ragchat.VectorStore

	// Services for end-to-end testing.
	DocumentService ragchat.DocumentService
	ChatService     ragchat.ChatService

	genai *genai.Client
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Logger: zap.NewNop()}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Logger != nil {
		_ = m.Logger.Sync()
	}
	if m.Store != nil {
		return m.Store.Close()
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("ragchat"),
		kong.Description("Retrieval-augmented chat over your documents and query generation for your databases."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'ragchat --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	path := cli.ConfigFile
	if path == "" {
		path = m.ConfigPath
	}
	if m.Config, err = toml.Load(path); err != nil {
		fmt.Fprintf(stderr, "Hint: Run 'ragchat config' to see the expected format\n")
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	deps.Config = m.Config

	switch {
	case cli.Verbose:
		m.Logger, err = zap.NewDevelopment()
	case cmd == "serve":
		m.Logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer m.Close()

	switch cmd {
	case "add", "list", "delete", "search", "ask", "serve":
		if err := m.openStore(ctx); err != nil {
			fmt.Fprintf(stderr, "Hint: Set store.path in %s to use a different location\n", configName(path))
			return err
		}

		// Listing and deleting never embed, so they work without
		// provider credentials.
		var embedder ragchat.Embedder
		if cmd != "list" && cmd != "delete" {
			if embedder, err = m.newEmbedder(ctx); err != nil {
				return err
			}
		}
		if err := m.wireDocuments(ctx, embedder); err != nil {
			return err
		}
		deps.Documents = m.DocumentService
	}

	if cmd == "add" || cmd == "serve" {
		pdfParser := pdf.NewParser()
		htmlParser := htmltomarkdown.NewParser(
			readability.NewFallbackExtractor(trafilatura.NewExtractor()),
			goquery.NewMetadataExtractor(),
		)
		deps.Reader = fs.NewDocumentReader(pdfParser, htmlParser)
		deps.Fetcher = raghttp.NewFetcher(pdfParser, htmlParser,
			raghttp.WithHostLimiter(raghttp.NewHostLimiter(fetchRatePerHost)),
			raghttp.WithRetryDelays(rag.DefaultRetryDelays()...),
			raghttp.WithLogger(m.Logger),
		)
	}

	if cmd == "query" || cmd == "serve" {
		schemaPath := m.Config.Query.Schema
		if cmd == "query" && cli.Query.Schema != "" {
			schemaPath = cli.Query.Schema
		}
		if schemaPath == "" && cmd == "query" {
			fmt.Fprintln(stderr, "Hint: Pass --schema or set query.schema in the configuration")
			return ragchat.Errorf(ragchat.EINVALID, "no schema configured")
		}
		if schemaPath != "" {
			schema, err := loadSchema(ctx, schemaPath)
			if err != nil {
				return fmt.Errorf("failed to load schema %q: %w", schemaPath, err)
			}
			if err := m.wireChat(ctx); err != nil {
				return err
			}
			deps.Queries = &prompt.Engine{Schema: schema, Chat: m.ChatService, Logger: m.Logger}
			deps.Interactor = &prompt.QueryHandler{Chat: m.ChatService}
		}
	}

	if cmd == "ask" || cmd == "serve" {
		if err := m.wireChat(ctx); err != nil {
			return err
		}
		deps.Asker = &rag.Asker{
			Search:   m.DocumentService,
			Chat:     m.ChatService,
			NResults: m.Config.Retrieval.NResults,
			Logger:   m.Logger,
		}
	}

	if cmd == "serve" {
		s := raggin.NewServer(m.Logger)
		s.Addr = m.Config.Server.Addr
		s.Documents = deps.Documents
		s.Reader = deps.Reader
		s.Fetcher = deps.Fetcher
		s.Asker = deps.Asker
		s.Queries = deps.Queries
		s.Interactor = deps.Interactor
		deps.Server = s
	}

	return kongCtx.Run(deps)
}

// fetchRatePerHost is the number of downloads per second allowed to each
// host.
const fetchRatePerHost = 1.0

// openStore opens and connects the configured vector store.
func (m *Main) openStore(ctx context.Context) error {
	cfg := m.Config.Store

	var store ragchat.VectorStore
	switch cfg.Backend {
	case toml.BackendSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		m.DB = sqlite.NewDB(cfg.Path)
		if err := m.DB.Open(); err != nil {
			return fmt.Errorf("failed to open database at %q: %w", cfg.Path, err)
		}
		store = sqlite.NewVectorStore(m.DB,
			sqlite.WithCollections(cfg.EmbeddingCollection, cfg.MetadataCollection),
			sqlite.WithLogger(m.Logger),
		)
	case toml.BackendBadger:
		store = badger.NewVectorStore(cfg.Path,
			badger.WithCollections(cfg.EmbeddingCollection, cfg.MetadataCollection),
			badger.WithLogger(m.Logger),
		)
	case toml.BackendMilvus:
		return ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "the milvus backend is not supported; use sqlite or badger")
	default:
		return ragchat.Errorf(ragchat.EINVALID, "unknown store backend %q", cfg.Backend)
	}

	m.Store = ragzap.NewLoggingVectorStore(store, m.Logger)
	if err := m.Store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s store: %w", cfg.Backend, err)
	}
	return nil
}

// newEmbedder creates the configured embedding service.
func (m *Main) newEmbedder(ctx context.Context) (ragchat.Embedder, error) {
	p := m.Config.Embedding

	var embedder ragchat.Embedder
	switch p.Provider {
	case toml.ProviderOpenAI:
		e, err := openai.NewEmbedder(openai.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	case toml.ProviderXinference:
		e, err := xinference.NewClient(p.BaseURL, p.APIKey).NewEmbedder(ctx, p.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create xinference embedder: %w", err)
		}
		embedder = e
	case toml.ProviderGemini:
		client, err := m.genaiClient(ctx, p.APIKey)
		if err != nil {
			return nil, err
		}
		embedder = gemini.NewEmbedder(client, p.Model)
	default:
		return nil, ragchat.Errorf(ragchat.EINVALID, "unknown embedding provider %q", p.Provider)
	}
	return ragzap.NewLoggingEmbedder(embedder, m.Logger), nil
}

// wireDocuments builds the document service on the connected store.
func (m *Main) wireDocuments(ctx context.Context, embedder ragchat.Embedder) error {
	cfg := m.Config

	var tokenCounter ragchat.TokenCounter
	if cfg.Splitter.SplitByTokens {
		var err error
		if cfg.Embedding.Provider == toml.ProviderGemini {
			tokenCounter, err = gemini.NewTokenCounter(cfg.Splitter.TokenModel)
		} else {
			tokenCounter, err = tiktoken.NewTokenCounter(cfg.Splitter.TokenModel)
		}
		if err != nil {
			return fmt.Errorf("failed to create token counter: %w", err)
		}
	}

	var limiter *rate.Limiter
	if rps := cfg.Retrieval.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	docs := &rag.DocumentEmbedder{
		Store:         m.Store,
		Embedder:      embedder,
		TokenCounter:  tokenCounter,
		Logger:        m.Logger,
		ChunkSize:     cfg.Splitter.ChunkSize,
		ChunkOverlap:  cfg.Splitter.ChunkOverlap,
		SplitByTokens: cfg.Splitter.SplitByTokens,
		Separators:    cfg.Splitter.Separators,
		NResults:      cfg.Retrieval.NResults,
		BatchSize:     cfg.Retrieval.BatchSize,
		Concurrency:   cfg.Retrieval.Concurrency,
		Limiter:       limiter,
	}
	m.DocumentService = ragzap.NewLoggingDocumentService(docs, m.Logger)
	return nil
}

// wireChat creates the configured chat service once.
func (m *Main) wireChat(ctx context.Context) error {
	if m.ChatService != nil {
		return nil
	}
	p := m.Config.Chat

	var chat ragchat.ChatService
	switch p.Provider {
	case toml.ProviderOpenAI:
		c, err := openai.NewChatService(openai.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model})
		if err != nil {
			return fmt.Errorf("failed to create chat service: %w", err)
		}
		chat = c
	case toml.ProviderGemini:
		client, err := m.genaiClient(ctx, p.APIKey)
		if err != nil {
			return err
		}
		chat = gemini.NewChatService(client, p.Model)
	default:
		return ragchat.Errorf(ragchat.EINVALID, "unknown chat provider %q", p.Provider)
	}
	m.ChatService = ragzap.NewLoggingChatService(chat, m.Logger)
	return nil
}

// genaiClient returns the Gemini client shared by the chat and embedding
// services.
func (m *Main) genaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if m.genai != nil {
		return m.genai, nil
	}
	if apiKey == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "GEMINI_API_KEY not set. Get a key at https://aistudio.google.com/apikey")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	m.genai = client
	return client, nil
}

// loadSchema reads a schema file, choosing the format by extension.
func loadSchema(ctx context.Context, path string) (*ragchat.Schema, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.LoadSchemaFile(path)
	case ".sql":
		return sqlite.LoadDDLSchemaFile(ctx, path)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ragchat.Errorf(ragchat.ENOTFOUND, "schema file %q not found", path)
			}
			return nil, err
		}
		tables, err := ragchat.ParseTables(data)
		if err != nil {
			return nil, err
		}
		return ragchat.SchemaFromTables(tables)
	default:
		return nil, ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "unsupported schema format %q", filepath.Ext(path))
	}
}

func configName(path string) string {
	if path == "" {
		return toml.DefaultPath()
	}
	return path
}
