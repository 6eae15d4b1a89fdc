package app

import "time"

// Config holds runtime configuration for one harvest run.
type Config struct {
	// Search
	Keyword        string
	StartPage      int
	EndPage        int
	PubMedBaseURL  string
	ResultsPerPage int
	UserAgent      string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Normalization
	MaxFieldChars int

	// Outputs
	OutputCSV string
	OutputPDF string

	// Behavior
	CacheDir    string
	CacheMaxAge time.Duration
	CacheClear  bool
	Verbose     bool
}
