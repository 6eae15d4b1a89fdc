package app

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperifyio/trialharvest/internal/record"
)

const fakeResultsPage = `<html><body>
<span class="value">2</span>
<article class="full-docsum"><a class="docsum-title" href="/1001/">Trial One</a></article>
<article class="full-docsum"><a class="docsum-title" href="/1002/">Trial Two</a></article>
</body></html>`

type fakePages struct {
	totalErr error
	pageErr  error
	markup   string
}

func (f *fakePages) TotalPages(context.Context, string) (int, error) {
	if f.totalErr != nil {
		return 0, f.totalErr
	}
	return 1, nil
}

func (f *fakePages) FetchPage(context.Context, string, int) ([]byte, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return []byte(f.markup), nil
}

type fakeGetter struct {
	bodies map[string]string
	err    error
}

func (f *fakeGetter) Get(_ context.Context, url string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte(f.bodies[url]), "text/html", nil
}

type fakeSummarizer struct {
	err      error
	response string
	calls    int
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testConfig() Config {
	return Config{Keyword: "Lung Cancer", PubMedBaseURL: "https://pubmed.example.org/"}
}

func TestHarvest_HappyPath(t *testing.T) {
	pages := &fakePages{markup: fakeResultsPage}
	getter := &fakeGetter{bodies: map[string]string{
		"https://pubmed.example.org/1001/": `<html><body><div class="abstract-content selected">Abstract one</div></body></html>`,
		"https://pubmed.example.org/1002/": `<html><body><div class="abstract-content selected">Abstract two</div></body></html>`,
	}}
	summ := &fakeSummarizer{response: "Title: Extracted\nTrial_Phase: 2"}

	recs, err := harvest(context.Background(), testConfig(), pages, getter, summ)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Source order is preserved.
	if recs[0].Source.Title != "Trial One" || recs[1].Source.Title != "Trial Two" {
		t.Fatalf("order lost: %q then %q", recs[0].Source.Title, recs[1].Source.Title)
	}
	for _, r := range recs {
		if r.Unprocessed {
			t.Fatal("unexpected unprocessed record")
		}
		if r.Fields["title"] != "Extracted" || r.Fields["phase"] != "2" {
			t.Fatalf("fields not normalized: %+v", r.Fields)
		}
	}
	if summ.calls != 2 {
		t.Fatalf("expected 2 summarizations, got %d", summ.calls)
	}
}

func TestHarvest_PageCountFailureIsFatal(t *testing.T) {
	pages := &fakePages{totalErr: errors.New("network down")}
	_, err := harvest(context.Background(), testConfig(), pages, &fakeGetter{}, &fakeSummarizer{})
	if err == nil {
		t.Fatal("expected fatal error when page count resolution fails")
	}
}

func TestHarvest_UnreachableArticleContinues(t *testing.T) {
	pages := &fakePages{markup: fakeResultsPage}
	getter := &fakeGetter{err: errors.New("connection refused")}
	summ := &fakeSummarizer{response: "ignored"}

	recs, err := harvest(context.Background(), testConfig(), pages, getter, summ)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records despite fetch failures, got %d", len(recs))
	}
	if summ.calls != 0 {
		t.Fatalf("empty article text must skip summarization, got %d calls", summ.calls)
	}
	for _, r := range recs {
		if r.Unprocessed {
			t.Fatal("fetch failure yields empty record, not the sentinel")
		}
		for _, k := range record.Keys {
			if r.Fields[k] != "" {
				t.Fatalf("expected empty fields, got %q=%q", k, r.Fields[k])
			}
		}
	}
}

func TestHarvest_SummarizerFailureEmitsSentinel(t *testing.T) {
	pages := &fakePages{markup: fakeResultsPage}
	getter := &fakeGetter{bodies: map[string]string{
		"https://pubmed.example.org/1001/": `<html><body><div class="abstract-content selected">Abstract one</div></body></html>`,
		"https://pubmed.example.org/1002/": `<html><body><div class="abstract-content selected">Abstract two</div></body></html>`,
	}}
	summ := &fakeSummarizer{err: errors.New("rate limited")}

	recs, err := harvest(context.Background(), testConfig(), pages, getter, summ)
	if err != nil {
		t.Fatalf("harvest must not abort on summarization failure: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 sentinel records, got %d", len(recs))
	}
	for _, r := range recs {
		if !r.Unprocessed {
			t.Fatal("expected sentinel unprocessed record")
		}
		for _, k := range record.Keys {
			if r.Fields[k] != "" {
				t.Fatalf("sentinel field %q not empty", k)
			}
		}
	}
}

func TestHarvest_ResultPageFetchFailureSkipsPage(t *testing.T) {
	pages := &fakePages{pageErr: errors.New("bad gateway")}
	recs, err := harvest(context.Background(), testConfig(), pages, &fakeGetter{}, &fakeSummarizer{})
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestClampPageRange(t *testing.T) {
	cases := []struct {
		start, end, total  int
		wantStart, wantEnd int
	}{
		{0, 0, 5, 1, 5},
		{2, 4, 10, 2, 4},
		{3, 99, 5, 3, 5},
		{0, 2, 7, 1, 2},
		{9, 0, 5, 6, 5}, // start beyond total collapses to an empty range
	}
	for _, c := range cases {
		gotStart, gotEnd := clampPageRange(c.start, c.end, c.total)
		if gotStart != c.wantStart || gotEnd != c.wantEnd {
			t.Errorf("clampPageRange(%d,%d,%d) = (%d,%d), want (%d,%d)",
				c.start, c.end, c.total, gotStart, gotEnd, c.wantStart, c.wantEnd)
		}
	}
}
