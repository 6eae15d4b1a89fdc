package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/trialharvest/internal/fetch"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results-amount"><span class="value">1,234</span> results</div>
<article class="full-docsum">
  <a class="docsum-title" href="/38000001/">Pembrolizumab in  Advanced
    Lung Cancer</a>
</article>
<article class="full-docsum">
  <div class="broken">no title anchor here</div>
</article>
<article class="full-docsum">
  <a class="docsum-title" href="/38000002/">Chemotherapy Alone</a>
</article>
</body></html>`

func newClient(srvURL string) *Client {
	return &Client{
		BaseURL: srvURL,
		Fetcher: &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
	}
}

func TestFetchPage_SendsSearchParams(t *testing.T) {
	var gotTerm, gotFilter, gotPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTerm = r.URL.Query().Get("term")
		gotFilter = r.URL.Query().Get("filter")
		gotPage = r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	if _, err := c.FetchPage(context.Background(), "Lung Cancer", 3); err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if gotTerm != "Lung Cancer AND Randomized Controlled Trial[Publication Type]" {
		t.Fatalf("term = %q", gotTerm)
	}
	if gotFilter != "simsearch1.fha" {
		t.Fatalf("filter = %q", gotFilter)
	}
	if gotPage != "3" {
		t.Fatalf("page = %q", gotPage)
	}
}

func TestFetchPage_EmptyKeyword(t *testing.T) {
	c := newClient("http://unused.invalid")
	if _, err := c.FetchPage(context.Background(), "  ", 1); err == nil {
		t.Fatal("expected error for empty keyword")
	}
}

func TestTotalPages_FromResultCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	got, err := c.TotalPages(context.Background(), "Lung Cancer")
	if err != nil {
		t.Fatalf("total pages: %v", err)
	}
	// 1234 results at 10 per page.
	if got != 124 {
		t.Fatalf("pages = %d, want 124", got)
	}
}

func TestTotalPages_MissingIndicatorDefaultsToOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>no results banner</p></body></html>"))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	got, err := c.TotalPages(context.Background(), "anything")
	if err != nil {
		t.Fatalf("total pages: %v", err)
	}
	if got != 1 {
		t.Fatalf("pages = %d, want 1", got)
	}
}

func TestTotalPages_FetchFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	_, err := c.TotalPages(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fetch.Error, got %T", err)
	}
}

func TestExtractListings_SkipsMalformedEntries(t *testing.T) {
	got := ExtractListings([]byte(resultsPage), "https://pubmed.ncbi.nlm.nih.gov/")
	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(got))
	}
	if got[0].Title != "Pembrolizumab in Advanced Lung Cancer" {
		t.Fatalf("title[0] = %q", got[0].Title)
	}
	if got[0].URL != "https://pubmed.ncbi.nlm.nih.gov/38000001/" {
		t.Fatalf("url[0] = %q", got[0].URL)
	}
	if got[1].URL != "https://pubmed.ncbi.nlm.nih.gov/38000002/" {
		t.Fatalf("url[1] = %q", got[1].URL)
	}
}

func TestExtractListings_GarbageMarkup(t *testing.T) {
	for _, in := range []string{"", "not html at all", "<article class=\"full-docsum\">"} {
		if got := ExtractListings([]byte(in), "https://pubmed.ncbi.nlm.nih.gov/"); len(got) != 0 {
			t.Fatalf("input %q: expected no listings, got %d", in, len(got))
		}
	}
}
