package logbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://log.concept2.com/api"
	DefaultTokenURL = "https://log.concept2.com/oauth/access_token"
)

// maxPages bounds the pagination loop. total_pages comes from the API and
// is not trusted beyond this ceiling. Variable so tests can lower it.
var maxPages = 500

// Config holds the settings for a results API client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // defaults to DefaultBaseURL
	TokenURL     string // defaults to DefaultTokenURL
	HTTPClient   *http.Client
}

// Client is an authenticated, paginating client for the results API.
// Every call that may refresh the access token returns the (possibly
// updated) token set so the caller can persist it.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	limiter      *rate.Limiter
}

// NewClient creates a results API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient:   cfg.HTTPClient,
		baseURL:      cfg.BaseURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		// ~4 req/s keeps a full-history bootstrap well under the API's limits
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultTokenURL
	}
	return c
}

// Refresh exchanges the refresh token for a new token set. The token
// endpoint wants the client credentials both in a Basic auth header and in
// the form body. The returned set has IssuedAt stamped at receipt time.
func (c *Client) Refresh(ctx context.Context, tokens TokenSet) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tokens.RefreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", tokens.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokens, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokens, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return tokens, refreshError(resp.StatusCode, body)
	}

	var fresh TokenSet
	if err := json.Unmarshal(body, &fresh); err != nil {
		return tokens, fmt.Errorf("decoding token response: %w", err)
	}
	fresh.IssuedAt = time.Now().UnixMilli()
	if fresh.Scope == "" {
		fresh.Scope = tokens.Scope
	}
	return fresh, nil
}

// refreshError maps a failed token exchange onto the error taxonomy.
func refreshError(status int, body []byte) error {
	var oauthErr struct {
		Error string `json:"error"`
	}
	json.Unmarshal(body, &oauthErr)

	switch oauthErr.Error {
	case "invalid_grant", "invalid_scope":
		return fmt.Errorf("refresh token rejected (%s): %w", oauthErr.Error, ErrReauthRequired)
	case "invalid_client":
		return fmt.Errorf("refreshing token: %w", ErrInvalidClient)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("refreshing token: %w", ErrInvalidClient)
	}
	return &APIError{Status: status, Body: string(body)}
}

// get performs an authenticated GET. An expired token is refreshed before
// the request; a 401 from the request itself triggers exactly one
// refresh-and-retry, after which the outcome is surfaced as-is.
func (c *Client) get(ctx context.Context, reqURL string, tokens TokenSet) (*http.Response, TokenSet, error) {
	if tokens.Expired(time.Now()) {
		fresh, err := c.Refresh(ctx, tokens)
		if err != nil {
			return nil, tokens, err
		}
		tokens = fresh
	}

	resp, err := c.do(ctx, reqURL, tokens)
	if err != nil {
		return nil, tokens, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		fresh, err := c.Refresh(ctx, tokens)
		if err != nil {
			return nil, tokens, err
		}
		tokens = fresh

		resp, err = c.do(ctx, reqURL, tokens)
		if err != nil {
			return nil, tokens, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, tokens, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return resp, tokens, nil
}

func (c *Client) do(ctx context.Context, reqURL string, tokens TokenSet) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	return resp, nil
}

// FetchMe fetches the authenticated athlete's profile.
func (c *Client) FetchMe(ctx context.Context, tokens TokenSet) (Athlete, TokenSet, error) {
	resp, tokens, err := c.get(ctx, c.baseURL+"/users/me", tokens)
	if err != nil {
		return Athlete{}, tokens, err
	}
	defer resp.Body.Close()

	var env meEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Athlete{}, tokens, fmt.Errorf("decoding profile: %w", err)
	}
	return env.Data, tokens, nil
}

// FetchPage fetches one page of results. A zero updatedAfter fetches the
// entire history window.
func (c *Client) FetchPage(ctx context.Context, tokens TokenSet, page int, updatedAfter time.Time) (Page, TokenSet, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if !updatedAfter.IsZero() {
		params.Set("updated_after", updatedAfter.UTC().Format(time.RFC3339))
	}

	resp, tokens, err := c.get(ctx, c.baseURL+"/results?"+params.Encode(), tokens)
	if err != nil {
		return Page{}, tokens, err
	}
	defer resp.Body.Close()

	var env pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Page{}, tokens, fmt.Errorf("decoding results page %d: %w", page, err)
	}

	return Page{Results: env.Data, Pagination: env.Meta.Pagination}, tokens, nil
}

// FetchAll fetches every page of results, strictly sequentially, and
// concatenates them. The loop follows the API's total_pages but never runs
// past maxPages, and it honours the context deadline between pages.
func (c *Client) FetchAll(ctx context.Context, tokens TokenSet, updatedAfter time.Time) ([]Result, TokenSet, error) {
	var all []Result

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, tokens, err
		}
		if page > maxPages {
			return all, tokens, fmt.Errorf("results pagination exceeded %d pages", maxPages)
		}

		p, fresh, err := c.FetchPage(ctx, tokens, page, updatedAfter)
		tokens = fresh
		if err != nil {
			return all, tokens, fmt.Errorf("fetching page %d: %w", page, err)
		}

		all = append(all, p.Results...)

		if p.Pagination.CurrentPage >= p.Pagination.TotalPages {
			break
		}
	}

	return all, tokens, nil
}
