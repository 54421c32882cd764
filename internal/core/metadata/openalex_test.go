package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/paperdex/internal/core"
)

const workJSON = `{
  "id": "https://openalex.org/W2741809807",
  "doi": "https://doi.org/10.48550/arxiv.1706.03762",
  "title": "Attention Is All You Need",
  "publication_year": 2017,
  "authorships": [
    {"author": {"display_name": "Ashish Vaswani"}},
    {"author": {"display_name": "Noam Shazeer"}}
  ],
  "open_access": {"is_oa": false, "oa_url": ""},
  "locations": [
    {"is_oa": false, "landing_page_url": "https://papers.example.org/1", "source": {"display_name": "NeurIPS"}},
    {"is_oa": true, "landing_page_url": "https://arxiv.org/abs/1706.03762", "pdf_url": "https://arxiv.org/pdf/1706.03762",
     "source": {"display_name": "arXiv (Cornell University)", "host_organization_name": "arXiv"}}
  ],
  "abstract_inverted_index": {"The": [0], "dominant": [1], "models": [2, 4], "sequence": [3]}
}`

func openAlexServer(t *testing.T) (*httptest.Server, *url.Values) {
	t.Helper()
	var lastQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/works/W2741809807":
			_, _ = w.Write([]byte(workJSON))
		case "/works/W500":
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		case "/works":
			_, _ = w.Write([]byte(`{"results": [` + workJSON + `, {"id": "https://openalex.org/W2", "display_name": "Closed Paper", "publication_year": 2019}]}`))
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastQuery
}

func TestGetPaper(t *testing.T) {
	srv, query := openAlexServer(t)
	c := NewOpenAlexClient(srv.URL, "me@example.org")

	p, err := c.GetPaper(context.Background(), "https://openalex.org/W2741809807")
	require.NoError(t, err)

	assert.Equal(t, "W2741809807", p.ID)
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, 2017, p.Year)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", p.PDFURL)
	assert.Equal(t, "The dominant models sequence models", p.Abstract)
	assert.Equal(t, "me@example.org", query.Get("mailto"))
}

func TestGetPaper_NotFound(t *testing.T) {
	srv, _ := openAlexServer(t)
	c := NewOpenAlexClient(srv.URL, "")

	_, err := c.GetPaper(context.Background(), "W404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetPaper_ServerError(t *testing.T) {
	srv, _ := openAlexServer(t)
	c := NewOpenAlexClient(srv.URL, "")

	_, err := c.GetPaper(context.Background(), "W500")
	assert.ErrorIs(t, err, core.ErrFetch)
	assert.True(t, core.IsRetryable(err))
}

func TestGetPaper_EmptyID(t *testing.T) {
	c := NewOpenAlexClient("http://127.0.0.1:1", "")
	_, err := c.GetPaper(context.Background(), "  ")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv, query := openAlexServer(t)
	c := NewOpenAlexClient(srv.URL, "")

	papers, err := c.Search(context.Background(), "attention", 2017, 5)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Equal(t, "attention", query.Get("search"))
	assert.Equal(t, "type:article,publication_year:2017", query.Get("filter"))
	assert.Equal(t, "5", query.Get("per-page"))

	assert.Equal(t, "Closed Paper", papers[1].Title)
	assert.Empty(t, papers[1].PDFURL)
	assert.Empty(t, papers[1].Authors)
}

func TestSearch_AnyYear(t *testing.T) {
	srv, query := openAlexServer(t)
	c := NewOpenAlexClient(srv.URL, "")

	_, err := c.Search(context.Background(), "attention", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "type:article", query.Get("filter"))
	assert.Equal(t, "10", query.Get("per-page"))
}

func TestPDFURLPriority(t *testing.T) {
	src := func(name, host string) *source {
		return &source{DisplayName: name, HostOrganizationName: host}
	}

	tests := []struct {
		name     string
		work     work
		expected string
	}{
		{
			name: "open access url wins",
			work: func() work {
				var w work
				w.OpenAccess.IsOA = true
				w.OpenAccess.OAURL = "https://oa.example.org/a.pdf"
				w.Locations = []location{{IsOA: true, PDFURL: "https://arxiv.org/pdf/1", Source: src("arXiv", "arXiv")}}
				return w
			}(),
			expected: "https://oa.example.org/a.pdf",
		},
		{
			name: "arxiv before pubmed",
			work: work{Locations: []location{
				{IsOA: true, PDFURL: "https://pubmed.example.org/2.pdf", Source: src("PubMed Central", "")},
				{IsOA: true, LandingPageURL: "https://arxiv.org/abs/3", Source: src("arXiv", "arXiv")},
			}},
			expected: "https://arxiv.org/abs/3",
		},
		{
			name: "pubmed before other open access",
			work: work{Locations: []location{
				{IsOA: true, PDFURL: "https://repo.example.org/4.pdf"},
				{PDFURL: "https://pubmed.example.org/5.pdf", Source: src("PubMed", "")},
			}},
			expected: "https://pubmed.example.org/5.pdf",
		},
		{
			name: "any open access location",
			work: work{Locations: []location{
				{IsOA: false, PDFURL: "https://closed.example.org/6.pdf"},
				{IsOA: true, LandingPageURL: "https://repo.example.org/7"},
			}},
			expected: "https://repo.example.org/7",
		},
		{
			name:     "nothing downloadable",
			work:     work{Locations: []location{{IsOA: false, PDFURL: "https://closed.example.org/8.pdf"}}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.work.pdfURL())
		})
	}
}

func TestRebuildAbstract(t *testing.T) {
	assert.Empty(t, rebuildAbstract(nil))
	assert.Equal(t, "a b a", rebuildAbstract(map[string][]int{"a": {0, 2}, "b": {1}}))
}
