package pubmed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/trialharvest/internal/fetch"
)

const (
	// DefaultBaseURL is the public PubMed search front end.
	DefaultBaseURL = "https://pubmed.ncbi.nlm.nih.gov/"
	// DefaultResultsPerPage is PubMed's fixed page size.
	DefaultResultsPerPage = 10
)

// Listing is one search hit on a results page: title plus absolute article
// link, in source ranking order.
type Listing struct {
	Title string
	URL   string
}

// Client fetches PubMed search result pages for a keyword. The keyword is
// narrowed to randomized controlled trials the same way the web UI's
// publication-type filter does.
type Client struct {
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string
	// Fetcher performs the HTTP work.
	Fetcher *fetch.Client
	// ResultsPerPage overrides DefaultResultsPerPage when the search backend
	// paginates differently.
	ResultsPerPage int
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

// PageURL builds the search URL for one results page.
func (c *Client) PageURL(keyword string, page int) (string, error) {
	u, err := url.Parse(c.baseURL())
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("term", keyword+" AND Randomized Controlled Trial[Publication Type]")
	q.Set("filter", "simsearch1.fha")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage retrieves the raw markup of one results page. page is 1-based.
func (c *Client) FetchPage(ctx context.Context, keyword string, page int) ([]byte, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	if page < 1 {
		page = 1
	}
	u, err := c.PageURL(keyword, page)
	if err != nil {
		return nil, err
	}
	body, _, err := c.Fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// TotalPages resolves the page count for keyword by reading the total-results
// indicator from page 1. A missing or unreadable indicator means one page; a
// failed fetch propagates so the caller can decide to abort the run.
func (c *Client) TotalPages(ctx context.Context, keyword string) (int, error) {
	markup, err := c.FetchPage(ctx, keyword, 1)
	if err != nil {
		return 0, err
	}
	perPage := c.ResultsPerPage
	if perPage <= 0 {
		perPage = DefaultResultsPerPage
	}
	return pagesFromMarkup(markup, perPage), nil
}

func pagesFromMarkup(markup []byte, perPage int) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return 1
	}
	raw := strings.TrimSpace(doc.Find("span.value").First().Text())
	raw = strings.ReplaceAll(raw, ",", "")
	count, err := strconv.Atoi(raw)
	if err != nil || count < 1 {
		return 1
	}
	pages := (count + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	return pages
}

// ExtractListings parses a results page into its listings. Malformed entries
// are skipped one by one; a page that parses to nothing yields an empty slice,
// never an error.
func ExtractListings(markup []byte, base string) []Listing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var out []Listing
	doc.Find("article.full-docsum").Each(func(_ int, article *goquery.Selection) {
		a := article.Find("a.docsum-title").First()
		title := strings.TrimSpace(a.Text())
		href, ok := a.Attr("href")
		if title == "" || !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		out = append(out, Listing{
			Title: collapseSpaces(title),
			URL:   baseU.ResolveReference(ref).String(),
		})
	})
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
