package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/BTreeMap/Crisp/internal/api"
	"github.com/BTreeMap/Crisp/internal/genai"
	"github.com/BTreeMap/Crisp/internal/jobs"
	"github.com/BTreeMap/Crisp/internal/session"
	"github.com/BTreeMap/Crisp/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Crisp state data
	DefaultStateDir = "/var/lib/crisp"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "crisp.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build the store backend for the resolved DSN
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build the evaluator backend
	evaluator, err := buildEvaluator(flags)
	if err != nil {
		slog.Error("Failed to initialize AI evaluator", "error", err)
		os.Exit(1)
	}

	engine := session.NewEngine(st, evaluator)

	// Optional background export of completed interviews
	if *flags.exportEnabled {
		exporter := buildExporter(st, flags)
		if err := exporter.Start(); err != nil {
			slog.Error("Failed to start exporter", "error", err)
			os.Exit(1)
		}
		defer exporter.Stop()
	}

	slog.Info("Bootstrapping Crisp with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"ai_backend", *flags.aiBackend, "api_addr", *flags.apiAddr, "export_enabled", *flags.exportEnabled)
	if err := api.Run(api.RunOpts{
		Opts: api.Opts{
			Addr:           *flags.apiAddr,
			AllowedOrigins: config.AllowedOrigins,
		},
		Engine: engine,
		Store:  st,
	}); err != nil {
		slog.Error("Crisp failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Crisp exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL"`
	StateDir       string   `env:"CRISP_STATE_DIR"`
	AIBackend      string   `env:"AI_BACKEND" envDefault:"openai"`
	OpenAIKey      string   `env:"OPENAI_API_KEY"`
	GeminiKey      string   `env:"GEMINI_API_KEY"`
	APIAddr        string   `env:"API_ADDR"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ExportEnabled  bool     `env:"EXPORT_ENABLED"`
	ExportSchedule string   `env:"EXPORT_SCHEDULE"`
	ExportDir      string   `env:"EXPORT_DIR"`
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	aiBackend      *string
	openaiKey      *string
	geminiKey      *string
	apiAddr        *string
	exportEnabled  *bool
	exportSchedule *string
	exportDir      *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config, err := env.ParseAs[Config]()
	if err != nil {
		slog.Error("Failed to parse environment configuration", "error", err)
		os.Exit(1)
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CRISP_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CRISP_STATE_DIR", config.StateDir,
		"AI_BACKEND", config.AIBackend,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"API_ADDR", config.APIAddr,
		"EXPORT_ENABLED", config.ExportEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for Crisp data (overrides $CRISP_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite file path or Postgres connection string (overrides $DATABASE_URL)"),
		aiBackend:      flag.String("ai-backend", config.AIBackend, "AI backend, openai or gemini (overrides $AI_BACKEND)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		geminiKey:      flag.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		exportEnabled:  flag.Bool("export-enabled", config.ExportEnabled, "enable periodic export of completed interviews (overrides $EXPORT_ENABLED)"),
		exportSchedule: flag.String("export-cron", config.ExportSchedule, "cron schedule for interview exports (overrides $EXPORT_SCHEDULE)"),
		exportDir:      flag.String("export-dir", config.ExportDir, "directory for interview export files (overrides $EXPORT_DIR)"),
	}

	flag.Parse()

	// Follow the state directory when the DSN still points at the default
	// SQLite location.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"aiBackend", *flags.aiBackend,
		"openaiKeySet", *flags.openaiKey != "",
		"geminiKeySet", *flags.geminiKey != "",
		"apiAddr", *flags.apiAddr)

	return flags
}

// buildStore constructs the store backend matching the DSN shape
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildEvaluator constructs the configured AI evaluator backend
func buildEvaluator(flags Flags) (genai.Evaluator, error) {
	if *flags.aiBackend == "gemini" {
		var opts []genai.GeminiOption
		if *flags.geminiKey != "" {
			opts = append(opts, genai.WithGeminiAPIKey(*flags.geminiKey))
		}
		return genai.NewGeminiClient(context.Background(), opts...)
	}
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genai.NewClient(opts...)
}

// buildExporter constructs the background interview exporter
func buildExporter(st store.Store, flags Flags) *jobs.Exporter {
	var opts []jobs.Option
	if *flags.exportSchedule != "" {
		opts = append(opts, jobs.WithSchedule(*flags.exportSchedule))
	}
	if *flags.exportDir != "" {
		opts = append(opts, jobs.WithExportDir(*flags.exportDir))
	}
	return jobs.NewExporter(st, opts...)
}
