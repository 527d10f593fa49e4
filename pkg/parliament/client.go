// Package parliament provides a client for the UK Parliament petitions
// listing API.
package parliament

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/fetcher"
)

// DefaultBaseURL is the public petitions site.
const DefaultBaseURL = "https://petition.parliament.uk"

// StateAll selects petitions in every state.
const StateAll = "all"

// Client defines the petitions listing operations.
type Client interface {
	// ListPage fetches one page of the listing. Pages are 1-indexed.
	ListPage(ctx context.Context, page int, state string) (*ListResponse, error)
}

// ListResponse is one page of the listing.
type ListResponse struct {
	Links PageLinks  `json:"links"`
	Data  []Petition `json:"data"`
}

// PageLinks holds the pagination references of a page.
type PageLinks struct {
	Self  *string `json:"self"`
	First *string `json:"first"`
	Last  *string `json:"last"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

// HasNext reports whether the page points at a further page.
func (l PageLinks) HasNext() bool {
	return l.Next != nil && strings.TrimSpace(*l.Next) != ""
}

// Petition is one listing entry.
type Petition struct {
	Type       string        `json:"type"`
	ID         int64         `json:"id"`
	Links      PetitionLinks `json:"links"`
	Attributes Attributes    `json:"attributes"`
}

// PetitionLinks holds the entry's self link (the JSON detail document).
type PetitionLinks struct {
	Self *string `json:"self"`
}

// Attributes carries the petition fields. Timestamps are kept as the raw
// strings the API returns.
type Attributes struct {
	Action                     *string             `json:"action"`
	Background                 *string             `json:"background"`
	State                      *string             `json:"state"`
	SignatureCount             *int64              `json:"signature_count"`
	CreatedAt                  *string             `json:"created_at"`
	UpdatedAt                  *string             `json:"updated_at"`
	OpenedAt                   *string             `json:"opened_at"`
	ClosedAt                   *string             `json:"closed_at"`
	ResponseThresholdReachedAt *string             `json:"response_threshold_reached_at"`
	GovernmentResponseAt       *string             `json:"government_response_at"`
	DebateThresholdReachedAt   *string             `json:"debate_threshold_reached_at"`
	ScheduledDebateDate        *string             `json:"scheduled_debate_date"`
	DebateOutcomeAt            *string             `json:"debate_outcome_at"`
	GovernmentResponse         *GovernmentResponse `json:"government_response"`
	Debate                     *Debate             `json:"debate"`
	Departments                []Department        `json:"departments"`
}

// GovernmentResponse is the official response object.
type GovernmentResponse struct {
	RespondedOn *string `json:"responded_on"`
	Summary     *string `json:"summary"`
	Details     *string `json:"details"`
}

// Debate is the parliamentary debate object.
type Debate struct {
	DebatedOn     *string `json:"debated_on"`
	TranscriptURL *string `json:"transcript_url"`
	VideoURL      *string `json:"video_url"`
	DebatePackURL *string `json:"debate_pack_url"`
	Overview      *string `json:"overview"`
}

// Department is a government department responsible for a petition.
type Department struct {
	Acronym string `json:"acronym"`
	Name    string `json:"name"`
	URL     string `json:"url"`
}

// HTTPClient implements Client over a fetcher.Fetcher.
type HTTPClient struct {
	baseURL string
	fetcher fetcher.Fetcher
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// NewClient creates a listing client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, f fetcher.Fetcher) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: f,
	}
}

// PageURL builds the listing URL for a page and state selector.
func (c *HTTPClient) PageURL(page int, state string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("state", state)
	return c.baseURL + "/petitions.json?" + q.Encode()
}

// ListPage fetches and decodes one listing page.
func (c *HTTPClient) ListPage(ctx context.Context, page int, state string) (*ListResponse, error) {
	if page < 1 {
		return nil, eris.Errorf("parliament: invalid page %d", page)
	}

	body, err := c.fetcher.Download(ctx, c.PageURL(page, state))
	if err != nil {
		return nil, eris.Wrapf(err, "parliament: list page %d", page)
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[ListResponse](body)
	if err != nil {
		return nil, eris.Wrapf(err, "parliament: decode page %d", page)
	}
	return resp, nil
}
