package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/trialharvest/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		keyword     string
		startPage   int
		endPage     int
		pubmedURL   string
		pubmedUA    string
		perPage     int
		llmBaseURL  string
		llmModel    string
		llmKey      string
		fieldChars  int
		outCSV      string
		outPDF      string
		cacheDir    string
		cacheMaxAge time.Duration
		cacheClear  bool
		configPath  string
		envPath     string
		logFile     string
		verbose     bool
	)

	flag.StringVar(&keyword, "keyword", "", "Search keyword, e.g. 'Lung Cancer'")
	flag.IntVar(&startPage, "page.start", 0, "First results page to process (default 1)")
	flag.IntVar(&endPage, "page.end", 0, "Last results page to process (default: all)")
	flag.StringVar(&pubmedURL, "pubmed.url", os.Getenv("PUBMED_URL"), "PubMed base URL override")
	flag.StringVar(&pubmedUA, "pubmed.ua", "trialharvest/1.0 (+https://github.com/hyperifyio/trialharvest)", "User-Agent for PubMed requests")
	flag.IntVar(&perPage, "pubmed.resultsPerPage", 0, "Results per page used for page-count resolution (default 10)")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the OpenAI-compatible server")
	flag.IntVar(&fieldChars, "max.fieldChars", 100, "Maximum characters per extracted field value")
	flag.StringVar(&outCSV, "out", "clinical_trials.csv", "Path to write the CSV output")
	flag.StringVar(&outPDF, "pdf", "", "Optional path to write a PDF run summary")
	flag.StringVar(&cacheDir, "cache.dir", ".trialharvest-cache", "Cache directory path; empty disables caching")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&envPath, "env", ".env", "Path to dotenv file with credentials")
	flag.StringVar(&logFile, "log.file", "", "Optional path to append a log file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	var sink io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		sink = zerolog.MultiLevelWriter(sink, f)
	}
	log.Logger = log.Output(sink)

	if err := app.LoadEnvFiles(envPath); err != nil {
		log.Error().Err(err).Msg("load env files")
		os.Exit(1)
	}
	// Env may have supplied credentials the flags defaulted empty.
	if llmBaseURL == "" {
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if llmModel == "" {
		llmModel = os.Getenv("LLM_MODEL")
	}
	if llmKey == "" {
		llmKey = os.Getenv("LLM_API_KEY")
	}

	cfg := app.Config{
		Keyword:        keyword,
		StartPage:      startPage,
		EndPage:        endPage,
		PubMedBaseURL:  pubmedURL,
		UserAgent:      pubmedUA,
		ResultsPerPage: perPage,
		LLMBaseURL:     llmBaseURL,
		LLMModel:       llmModel,
		LLMAPIKey:      llmKey,
		MaxFieldChars:  fieldChars,
		OutputCSV:      outCSV,
		OutputPDF:      outPDF,
		CacheDir:       cacheDir,
		CacheMaxAge:    cacheMaxAge,
		CacheClear:     cacheClear,
		Verbose:        verbose,
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config file")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
