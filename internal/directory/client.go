package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const apiPrefix = "/api/v1"

// Options configures the backend API client.
type Options struct {
	// BaseURL is the root of the HUGWAWI backend, e.g. http://hugwawi:9080.
	BaseURL string
	// APIKey is sent as X-Api-Key on every request when non-empty.
	APIKey string
	// Timeout bounds a single HTTP attempt. Defaults to 15s.
	Timeout time.Duration
	// RetryMax is the number of retries for transient failures.
	RetryMax int
	// Logger receives transport-level retry logging. Optional.
	Logger *slog.Logger
}

// Client talks to the HUGWAWI backend API. All reads and searches of the
// administrative screens go through it; the backend owns every record.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client with retrying transport.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("directory: base URL must be provided")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.HTTPClient = &http.Client{Timeout: timeout}
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	} else {
		rc.Logger = nil
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: rc.StandardClient(),
	}, nil
}

// SearchAddresses runs one filtered, sorted, paginated address search.
// An empty result set is a valid page, not an error.
func (c *Client) SearchAddresses(ctx context.Context, query SearchQuery) (*ResultPage, error) {
	if !query.Group.Valid() {
		return nil, fmt.Errorf("directory: invalid search group %q", query.Group)
	}

	params := url.Values{}
	for field, values := range query.Filters {
		for _, v := range values {
			params.Add(field, v)
		}
	}
	params.Set("group", string(query.Group))
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("pageSize", strconv.Itoa(query.PageSize))
	params.Set("sort", query.Sort)
	params.Set("dir", string(query.Dir))

	var page ResultPage
	if err := c.get(ctx, apiPrefix+"/addresses/search", params, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []Address{}
	}
	return &page, nil
}

// ListContactTypes fetches the contact-type catalogue.
func (c *Client) ListContactTypes(ctx context.Context) ([]ContactType, error) {
	var types []ContactType
	if err := c.get(ctx, apiPrefix+"/contact-types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// GetAddress fetches one address master record.
func (c *Client) GetAddress(ctx context.Context, kdn string) (*Address, error) {
	var addr Address
	if err := c.get(ctx, addressPath(kdn), nil, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListAddressLines fetches all address lines of an address.
func (c *Client) ListAddressLines(ctx context.Context, kdn string) ([]AddressLine, error) {
	var lines []AddressLine
	if err := c.get(ctx, addressPath(kdn)+"/lines", nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// GetAddressLine fetches one address line.
func (c *Client) GetAddressLine(ctx context.Context, kdn string, id int64) (*AddressLine, error) {
	var line AddressLine
	if err := c.get(ctx, addressPath(kdn)+"/lines/"+strconv.FormatInt(id, 10), nil, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// ListBankAccounts fetches all bank accounts of an address.
func (c *Client) ListBankAccounts(ctx context.Context, kdn string) ([]BankAccount, error) {
	var accounts []BankAccount
	if err := c.get(ctx, addressPath(kdn)+"/bank-accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetBankAccount fetches one bank account.
func (c *Client) GetBankAccount(ctx context.Context, kdn string, id int64) (*BankAccount, error) {
	var account BankAccount
	if err := c.get(ctx, addressPath(kdn)+"/bank-accounts/"+strconv.FormatInt(id, 10), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListContacts fetches all contact persons of an address.
func (c *Client) ListContacts(ctx context.Context, kdn string) ([]Contact, error) {
	var contacts []Contact
	if err := c.get(ctx, addressPath(kdn)+"/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// GetContact fetches one contact person.
func (c *Client) GetContact(ctx context.Context, kdn string, id int64) (*Contact, error) {
	var contact Contact
	if err := c.get(ctx, addressPath(kdn)+"/contacts/"+strconv.FormatInt(id, 10), nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func addressPath(kdn string) string {
	return apiPrefix + "/addresses/" + url.PathEscape(kdn)
}

// problemBody matches the backend's problem+json error payload.
type problemBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, response any) error {
	uri := c.baseURL + endpoint
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &QueryError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &QueryError{Status: resp.StatusCode, Detail: readProblemDetail(resp.Body)}
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return &QueryError{Status: resp.StatusCode, Detail: "invalid response body", cause: err}
		}
	}
	return nil
}

// readProblemDetail extracts a human-readable message from an error
// response, accepting problem+json or a short plain-text body.
func readProblemDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var problem problemBody
	if err := json.Unmarshal(data, &problem); err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 || strings.ContainsAny(text, "<>") {
		return ""
	}
	return text
}
