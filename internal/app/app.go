package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/trialharvest/internal/abstract"
	"github.com/hyperifyio/trialharvest/internal/cache"
	"github.com/hyperifyio/trialharvest/internal/fetch"
	"github.com/hyperifyio/trialharvest/internal/llm"
	"github.com/hyperifyio/trialharvest/internal/normalize"
	"github.com/hyperifyio/trialharvest/internal/pubmed"
	"github.com/hyperifyio/trialharvest/internal/record"
	"github.com/hyperifyio/trialharvest/internal/summarize"
)

// App wires the harvest pipeline together: resolve page count, walk pages,
// extract listings, fetch article text, summarize, normalize, accumulate.
type App struct {
	cfg       Config
	ai        *openai.Client
	httpCache *cache.HTTPCache
	llmCache  *cache.LLMCache
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if strings.TrimSpace(cfg.Keyword) == "" {
		return nil, fmt.Errorf("missing keyword")
	}

	transportCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		transportCfg.BaseURL = cfg.LLMBaseURL
	}
	a := &App{cfg: cfg, ai: openai.NewClientWithConfig(transportCfg)}

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			_, _ = cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge)
			_, _ = cache.PurgeLLMCacheByAge(cfg.CacheDir, cfg.CacheMaxAge)
		}
		a.httpCache = &cache.HTTPCache{Dir: cfg.CacheDir}
		a.llmCache = &cache.LLMCache{Dir: cfg.CacheDir}
	}

	// Best-effort connectivity check; a failure here is surfaced per item later.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if models, err := a.ai.ListModels(ctx); err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
	} else if len(models.Models) == 0 {
		log.Warn().Msg("LLM returned zero models")
	}

	return a, nil
}

func (a *App) Close() {
	// nothing yet
}

// Run performs one harvest and writes the configured outputs.
func (a *App) Run(ctx context.Context) error {
	recs, err := a.Harvest(ctx)
	if err != nil {
		return err
	}

	unprocessed := 0
	for _, r := range recs {
		if r.Unprocessed {
			unprocessed++
		}
	}

	if err := WriteCSV(a.cfg.OutputCSV, recs); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	log.Info().Str("out", a.cfg.OutputCSV).Int("records", len(recs)).Int("unprocessed", unprocessed).Msg("wrote records")

	if a.cfg.OutputPDF != "" {
		if err := writeRunSummaryPDF(a.cfg.OutputPDF, a.cfg.Keyword, recs); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPDF).Msg("wrote run summary")
	}
	return nil
}

// Harvest runs the pipeline and returns the accumulated records. Only the
// initial page-count resolution can fail; every later problem degrades to a
// logged, per-item record.
func (a *App) Harvest(ctx context.Context) ([]record.Record, error) {
	fetcher := &fetch.Client{
		UserAgent:         a.cfg.UserAgent,
		MaxAttempts:       2,
		PerRequestTimeout: 15 * time.Second,
		Cache:             a.httpCache,
		RedirectMaxHops:   5,
	}
	pm := &pubmed.Client{
		BaseURL:        a.cfg.PubMedBaseURL,
		Fetcher:        fetcher,
		ResultsPerPage: a.cfg.ResultsPerPage,
	}
	summ := &summarize.Summarizer{Client: &llm.OpenAIProvider{Inner: a.ai}, Model: a.cfg.LLMModel, Cache: a.llmCache}
	return harvest(ctx, a.cfg, pm, fetcher, summ)
}

// pageSource, articleGetter and summarizer are the narrow seams the harvest
// loop needs, so tests can drive it with fakes.
type pageSource interface {
	TotalPages(ctx context.Context, keyword string) (int, error)
	FetchPage(ctx context.Context, keyword string, page int) ([]byte, error)
}

type articleGetter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

type summarizer interface {
	Summarize(ctx context.Context, trialText string) (string, error)
}

func harvest(ctx context.Context, cfg Config, pm pageSource, getter articleGetter, summ summarizer) ([]record.Record, error) {
	keyword := cfg.Keyword

	total, err := pm.TotalPages(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("resolve page count: %w", err)
	}
	start, end := clampPageRange(cfg.StartPage, cfg.EndPage, total)
	log.Info().Str("keyword", keyword).Int("totalPages", total).Int("start", start).Int("end", end).Msg("resolved pages")

	base := cfg.PubMedBaseURL
	if base == "" {
		base = pubmed.DefaultBaseURL
	}
	norm := &normalize.Normalizer{MaxFieldChars: cfg.MaxFieldChars}

	var recs []record.Record
	for page := start; page <= end; page++ {
		markup, err := pm.FetchPage(ctx, keyword, page)
		if err != nil {
			log.Warn().Err(err).Str("keyword", keyword).Int("page", page).Msg("result page fetch failed; skipping page")
			continue
		}
		listings := pubmed.ExtractListings(markup, base)
		if len(listings) == 0 {
			log.Debug().Int("page", page).Msg("no listings on page")
			continue
		}
		for i, l := range listings {
			src := record.Source{Title: l.Title, URL: l.URL, Page: page, Listing: i + 1}
			log.Info().Str("title", l.Title).Int("page", page).Int("listing", i+1).Msg("processing trial")

			text := articleText(ctx, getter, src)
			if text == "" {
				// Nothing to summarize; emit an empty-but-processed record.
				rec := record.New()
				rec.Source = src
				recs = append(recs, rec)
				continue
			}

			raw, err := summ.Summarize(ctx, text)
			if err != nil {
				log.Error().Err(err).Str("keyword", keyword).Int("page", page).Int("listing", i+1).Str("url", src.URL).Msg("summarization failed; emitting unprocessed record")
				recs = append(recs, record.Unprocessed(src))
				continue
			}

			rec := norm.Normalize(raw)
			rec.Source = src
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// articleText fetches one article and extracts its abstract. Failures are
// logged and collapse to "", never an error, so one unreachable article does
// not stop the run.
func articleText(ctx context.Context, getter articleGetter, src record.Source) string {
	body, _, err := getter.Get(ctx, src.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", src.URL).Int("page", src.Page).Int("listing", src.Listing).Msg("article fetch failed")
		return ""
	}
	return abstract.FromHTML(body)
}

// clampPageRange normalizes the configured page window to [1, total]. An
// unset end means the whole result set.
func clampPageRange(start, end, total int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end < 1 || end > total {
		end = total
	}
	if start > end {
		start = end + 1 // empty range
	}
	return start, end
}
