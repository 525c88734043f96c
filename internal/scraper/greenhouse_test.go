package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

func testClient() *Client {
	return NewClient(ClientConfig{UserAgent: "jobcrawler-test"})
}

func TestGreenhouseFetchAllPaginates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		switch offset {
		case 0:
			fmt.Fprint(w, `{"jobs":[
				{"id":101,"title":"Junior Analyst","absolute_url":"https://x/101","location":{"name":"NYC"},"departments":[{"name":"Data"}]},
				{"id":102,"title":"Support Engineer","absolute_url":"https://x/102","location":{"name":"Remote"}}
			]}`)
		case 2:
			fmt.Fprint(w, `{"jobs":[
				{"id":103,"title":"Associate PM","absolute_url":"https://x/103","location":{"name":"SF"}}
			]}`)
		default:
			t.Errorf("unexpected offset %d", offset)
		}
	}))
	defer srv.Close()

	source := jobs.Source{ID: 7, Name: "acme", ListingURL: srv.URL, Vendor: jobs.VendorGreenhouse, PageSize: 2}
	gh := NewGreenhouse(source, testClient(), 0, zap.NewNop())

	postings, pages, err := gh.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, postings, 3)

	first := postings[0]
	assert.Equal(t, int64(7), first.SourceID)
	assert.Equal(t, "101", first.ExternalID)
	assert.Equal(t, "Junior Analyst", first.Title)
	assert.Equal(t, "https://x/101", first.URL)
	assert.Equal(t, "NYC", first.Location)
	assert.Equal(t, "Data", first.Department)
	assert.Equal(t, jobs.AnalysisPending, first.AnalysisStatus)
	assert.Empty(t, postings[1].Department)
}

func TestGreenhouseListPageBareArray(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":9,"title":"Intern","absolute_url":"https://x/9","location":{"name":"Austin"}}]`)
	}))
	defer srv.Close()

	source := jobs.Source{ID: 1, ListingURL: srv.URL, Vendor: jobs.VendorGreenhouse}
	gh := NewGreenhouse(source, testClient(), 0, zap.NewNop())

	postings, _, err := gh.ListPage(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "9", postings[0].ExternalID)
	assert.Equal(t, "Intern", postings[0].Title)
}

func TestGreenhouseFetchDetailExtractsContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div id="header">nav stuff</div>
			<div id="content"><h1>Junior Analyst</h1><script>track()</script><p>Entry level role in data.</p></div>
		</body></html>`)
	}))
	defer srv.Close()

	source := jobs.Source{ID: 1, ListingURL: srv.URL, Vendor: jobs.VendorGreenhouse}
	gh := NewGreenhouse(source, testClient(), 0, zap.NewNop())

	p := jobs.Posting{URL: srv.URL + "/jobs/101"}
	require.NoError(t, gh.FetchDetail(context.Background(), &p))

	assert.Contains(t, p.RawDescriptionText, "Entry level role in data.")
	assert.NotContains(t, p.RawDescriptionText, "track()")
	assert.NotContains(t, p.RawDescriptionText, "nav stuff")
	assert.Contains(t, p.RawDescriptionHTML, "<h1>Junior Analyst</h1>")
}

func TestGreenhouseFetchDetailFallsBackToDocumentText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main>Plain description page</main></body></html>`)
	}))
	defer srv.Close()

	source := jobs.Source{ID: 1, ListingURL: srv.URL, Vendor: jobs.VendorGreenhouse}
	gh := NewGreenhouse(source, testClient(), 0, zap.NewNop())

	p := jobs.Posting{URL: srv.URL}
	require.NoError(t, gh.FetchDetail(context.Background(), &p))
	assert.Contains(t, p.RawDescriptionText, "Plain description page")
}

func TestGreenhouseFetchDetailHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	source := jobs.Source{ID: 1, ListingURL: srv.URL, Vendor: jobs.VendorGreenhouse}
	gh := NewGreenhouse(source, testClient(), 0, zap.NewNop())

	p := jobs.Posting{URL: srv.URL + "/gone"}
	err := gh.FetchDetail(context.Background(), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
