package metadata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

const (
	DefaultBaseURL = "https://api.openalex.org"
	idPrefix       = "https://openalex.org/"
)

// OpenAlexClient resolves and searches works through the OpenAlex REST API.
type OpenAlexClient struct {
	http *resty.Client
}

// NewOpenAlexClient builds a client. email, when set, joins OpenAlex's polite pool.
func NewOpenAlexClient(baseURL, email string) *OpenAlexClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	if email != "" {
		c.SetHeader("User-Agent", "paperdex (mailto:"+email+")")
		c.SetQueryParam("mailto", email)
	}
	return &OpenAlexClient{http: c}
}

type work struct {
	ID              string `json:"id"`
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	DisplayName     string `json:"display_name"`
	PublicationYear int    `json:"publication_year"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	OpenAccess struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	Locations []location `json:"locations"`

	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type location struct {
	IsOA           bool    `json:"is_oa"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Source         *source `json:"source"`
}

type source struct {
	DisplayName          string `json:"display_name"`
	HostOrganization     string `json:"host_organization"`
	HostOrganizationName string `json:"host_organization_name"`
}

type worksPage struct {
	Results []work `json:"results"`
}

// GetPaper fetches one work. A work without any downloadable location comes back
// with an empty PDFURL; the pipeline reports it as core.ErrNoPDF.
func (c *OpenAlexClient) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), idPrefix)
	if id == "" {
		return nil, fmt.Errorf("empty paper id")
	}

	var w work
	resp, err := c.http.R().SetContext(ctx).SetResult(&w).Get("/works/" + id)
	if err != nil {
		return nil, fmt.Errorf("%w: openalex %s: %w", core.ErrFetch, id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("openalex work %s: %w", id, core.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: openalex %s: %s", core.ErrFetch, id, resp.Status())
	}
	p := w.toPaper()
	return &p, nil
}

// Search runs a full-text work search. year <= 0 means any year.
func (c *OpenAlexClient) Search(ctx context.Context, query string, year, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = 10
	}
	filter := "type:article"
	if year > 0 {
		filter += ",publication_year:" + strconv.Itoa(year)
	}

	var page worksPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search":   query,
			"filter":   filter,
			"per-page": strconv.Itoa(limit),
		}).
		SetResult(&page).
		Get("/works")
	if err != nil {
		return nil, fmt.Errorf("%w: openalex search: %w", core.ErrFetch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: openalex search: %s", core.ErrFetch, resp.Status())
	}

	out := make([]models.Paper, 0, len(page.Results))
	for _, w := range page.Results {
		out = append(out, w.toPaper())
	}
	return out, nil
}

func (w work) toPaper() models.Paper {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	authors := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}
	return models.Paper{
		ID:       strings.TrimPrefix(w.ID, idPrefix),
		Title:    title,
		Year:     w.PublicationYear,
		Authors:  authors,
		Abstract: rebuildAbstract(w.AbstractInvertedIndex),
		DOI:      w.DOI,
		PDFURL:   w.pdfURL(),
	}
}

// pdfURL picks the download location: open-access URL, then arXiv, then PubMed,
// then any open-access location.
func (w work) pdfURL() string {
	if w.OpenAccess.IsOA && w.OpenAccess.OAURL != "" {
		return w.OpenAccess.OAURL
	}
	for _, l := range w.Locations {
		if l.Source != nil && (strings.EqualFold(l.Source.HostOrganizationName, "arXiv") ||
			strings.EqualFold(l.Source.HostOrganization, "arXiv")) {
			if u := l.url(); u != "" {
				return u
			}
		}
	}
	for _, l := range w.Locations {
		if l.Source != nil && strings.Contains(strings.ToLower(l.Source.DisplayName), "pubmed") {
			if u := l.url(); u != "" {
				return u
			}
		}
	}
	for _, l := range w.Locations {
		if l.IsOA {
			if u := l.url(); u != "" {
				return u
			}
		}
	}
	return ""
}

func (l location) url() string {
	if l.PDFURL != "" {
		return l.PDFURL
	}
	return l.LandingPageURL
}

// rebuildAbstract turns OpenAlex's word → positions index back into text.
func rebuildAbstract(idx map[string][]int) string {
	if len(idx) == 0 {
		return ""
	}
	type wordAt struct {
		pos  int
		word string
	}
	var words []wordAt
	for w, positions := range idx {
		for _, p := range positions {
			words = append(words, wordAt{pos: p, word: w})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}

var (
	_ core.MetadataProvider = (*OpenAlexClient)(nil)
	_ core.PaperSearcher    = (*OpenAlexClient)(nil)
)
