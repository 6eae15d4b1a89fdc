package app

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file YAML configuration schema. Nested sections
// mirror the flag groups.
type FileConfig struct {
	Keyword string `yaml:"keyword"`

	Page struct {
		Start int `yaml:"start"`
		End   int `yaml:"end"`
	} `yaml:"page"`

	PubMed struct {
		URL            string `yaml:"url"`
		UserAgent      string `yaml:"ua"`
		ResultsPerPage int    `yaml:"resultsPerPage"`
	} `yaml:"pubmed"`

	LLM struct {
		BaseURL string `yaml:"base"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"key"`
	} `yaml:"llm"`

	Max struct {
		FieldChars int `yaml:"fieldChars"`
	} `yaml:"max"`

	Out struct {
		CSV string `yaml:"csv"`
		PDF string `yaml:"pdf"`
	} `yaml:"out"`

	Cache struct {
		Dir string `yaml:"dir"`
		// MaxAge is a Go duration string, e.g. "24h".
		MaxAge string `yaml:"maxAge"`
		Clear  bool   `yaml:"clear"`
	} `yaml:"cache"`

	Verbose bool `yaml:"verbose"`
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// ApplyFileConfig overlays file values into cfg for fields still unset after
// flag parsing, so explicit flags win over the config file.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.Keyword == "" {
		cfg.Keyword = fc.Keyword
	}
	if cfg.StartPage == 0 {
		cfg.StartPage = fc.Page.Start
	}
	if cfg.EndPage == 0 {
		cfg.EndPage = fc.Page.End
	}
	if cfg.PubMedBaseURL == "" {
		cfg.PubMedBaseURL = fc.PubMed.URL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fc.PubMed.UserAgent
	}
	if cfg.ResultsPerPage == 0 {
		cfg.ResultsPerPage = fc.PubMed.ResultsPerPage
	}
	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.MaxFieldChars == 0 {
		cfg.MaxFieldChars = fc.Max.FieldChars
	}
	if cfg.OutputCSV == "" {
		cfg.OutputCSV = fc.Out.CSV
	}
	if cfg.OutputPDF == "" {
		cfg.OutputPDF = fc.Out.PDF
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge != "" {
		if d, err := time.ParseDuration(fc.Cache.MaxAge); err == nil {
			cfg.CacheMaxAge = d
		}
	}
	if !cfg.CacheClear {
		cfg.CacheClear = fc.Cache.Clear
	}
	if !cfg.Verbose {
		cfg.Verbose = fc.Verbose
	}
}
