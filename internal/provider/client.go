package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/meltmail/internal/model"
)

// DefaultBaseURL is the public mail.tm API.
const DefaultBaseURL = "https://api.mail.tm"

// DefaultFallbackDomain is used when domain discovery fails.
const DefaultFallbackDomain = "mail.tm"

// Client is a thin, stateless HTTP client for a mail.tm-compatible API.
// Each method maps to a single request; nothing is retried.
type Client struct {
	baseURL        string
	fallbackDomain string
	httpClient     *http.Client
}

// NewClient creates a provider client. An empty baseURL selects the public
// mail.tm API and an empty fallbackDomain selects mail.tm.
func NewClient(baseURL, fallbackDomain string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if fallbackDomain == "" {
		fallbackDomain = DefaultFallbackDomain
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		fallbackDomain: fallbackDomain,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListDomains returns the provider's domains in the order the provider
// returned them. It never fails: any error yields the fallback domain.
func (c *Client) ListDomains(ctx context.Context) []string {
	var resp DomainsResponse
	if _, err := c.do(ctx, http.MethodGet, "/domains", "", nil, &resp); err != nil {
		log.Printf("domain discovery failed, using %s: %v", c.fallbackDomain, err)
		return []string{c.fallbackDomain}
	}

	domains := make([]string, 0, len(resp.Members))
	for _, d := range resp.Members {
		if d.Domain != "" {
			domains = append(domains, d.Domain)
		}
	}
	if len(domains) == 0 {
		return []string{c.fallbackDomain}
	}
	return domains
}

// CreateAccount registers a mailbox. Only 201 Created counts as success.
func (c *Client) CreateAccount(
	ctx context.Context,
	address, password string,
) (*Account, error) {
	var acct Account
	status, err := c.do(
		ctx, http.MethodPost, "/accounts", "",
		Credentials{Address: address, Password: password}, &acct,
	)
	if err != nil {
		return nil, &ProvisioningError{Address: address, Status: statusOf(err), Err: err}
	}
	if status != http.StatusCreated {
		return nil, &ProvisioningError{
			Address: address,
			Status:  status,
			Err:     fmt.Errorf("expected 201 Created"),
		}
	}

	acct.Address = address
	acct.Password = password
	return &acct, nil
}

// FetchToken exchanges mailbox credentials for a bearer token.
func (c *Client) FetchToken(
	ctx context.Context,
	address, password string,
) (string, error) {
	var resp TokenResponse
	_, err := c.do(
		ctx, http.MethodPost, "/token", "",
		Credentials{Address: address, Password: password}, &resp,
	)
	if err != nil {
		return "", &AuthenticationError{Address: address, Status: statusOf(err), Err: err}
	}
	if resp.Token == "" {
		return "", &AuthenticationError{
			Address: address,
			Err:     fmt.Errorf("response carried no token"),
		}
	}
	return resp.Token, nil
}

// ListMessages returns the inbox listing. Failures are reported as a
// FetchError so callers can tell an unreachable inbox from an empty one.
func (c *Client) ListMessages(
	ctx context.Context,
	token string,
) ([]model.MessageSummary, error) {
	const op = "listing messages"
	if token == "" {
		return nil, &FetchError{Op: op, Err: ErrNoToken}
	}

	var resp MessagesResponse
	if _, err := c.do(ctx, http.MethodGet, "/messages", token, nil, &resp); err != nil {
		return nil, &FetchError{Op: op, Status: statusOf(err), Err: err}
	}
	if resp.Members == nil {
		return []model.MessageSummary{}, nil
	}
	return resp.Members, nil
}

// FetchMessage returns the full message with the given id.
func (c *Client) FetchMessage(
	ctx context.Context,
	token, id string,
) (*model.Message, error) {
	op := fmt.Sprintf("fetching message %s", id)
	if token == "" {
		return nil, &FetchError{Op: op, Err: ErrNoToken}
	}

	var rec MessageRecord
	if _, err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(id), token, nil, &rec); err != nil {
		status := statusOf(err)
		if status == http.StatusNotFound {
			err = fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, &FetchError{Op: op, Status: status, Err: err}
	}
	return rec.toMessage(), nil
}

// FetchSource returns the raw RFC 822 source of a message.
func (c *Client) FetchSource(
	ctx context.Context,
	token, id string,
) (string, error) {
	op := fmt.Sprintf("fetching source of %s", id)
	if token == "" {
		return "", &FetchError{Op: op, Err: ErrNoToken}
	}

	var resp SourceResponse
	if _, err := c.do(ctx, http.MethodGet, "/sources/"+url.PathEscape(id), token, nil, &resp); err != nil {
		status := statusOf(err)
		if status == http.StatusNotFound {
			err = fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return "", &FetchError{Op: op, Status: status, Err: err}
	}
	return resp.Data, nil
}

// do builds the request, sets auth and content headers, and decodes the
// JSON response. Non-2xx responses are returned as *statusError along with
// the status code.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	token string,
	body interface{},
	result interface{},
) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	// The hydra collection envelope is only returned for JSON-LD.
	req.Header.Set("Accept", "application/ld+json, application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return resp.StatusCode, fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &statusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   truncateBody(respBody),
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return resp.StatusCode, fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}

	return resp.StatusCode, nil
}

// statusOf extracts the HTTP status from an error returned by do, or 0
// for transport failures.
func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// truncateBody keeps error messages readable when a provider returns an
// HTML error page.
func truncateBody(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
