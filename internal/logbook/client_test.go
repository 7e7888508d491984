package logbook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveTokens() TokenSet {
	return TokenSet{
		AccessToken:  "live-access",
		RefreshToken: "live-refresh",
		ExpiresIn:    3600,
		IssuedAt:     time.Now().UnixMilli(),
		Scope:        "user:read,results:read",
	}
}

func TestTokenSetExpired(t *testing.T) {
	now := time.Now()

	fresh := TokenSet{ExpiresIn: 3600, IssuedAt: now.UnixMilli()}
	assert.False(t, fresh.Expired(now))

	// Inside the early-refresh buffer counts as expired
	closing := TokenSet{ExpiresIn: 200, IssuedAt: now.UnixMilli()}
	assert.True(t, closing.Expired(now))

	stale := TokenSet{ExpiresIn: 3600, IssuedAt: now.Add(-2 * time.Hour).UnixMilli()}
	assert.True(t, stale.Expired(now))

	// Missing bookkeeping always reads as expired
	assert.True(t, TokenSet{ExpiresIn: 3600}.Expired(now))
	assert.True(t, TokenSet{IssuedAt: now.UnixMilli()}.Expired(now))
}

func TestRefreshSendsCredentialsInHeaderAndBody(t *testing.T) {
	var seen struct {
		user, pass string
		form       map[string]string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.user, seen.pass, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		seen.form = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    7200,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL})

	before := time.Now().UnixMilli()
	fresh, err := c.Refresh(context.Background(), liveTokens())
	require.NoError(t, err)

	assert.Equal(t, "cid", seen.user)
	assert.Equal(t, "secret", seen.pass)
	assert.Equal(t, "refresh_token", seen.form["grant_type"])
	assert.Equal(t, "live-refresh", seen.form["refresh_token"])
	assert.Equal(t, "cid", seen.form["client_id"])
	assert.Equal(t, "secret", seen.form["client_secret"])

	assert.Equal(t, "new-access", fresh.AccessToken)
	assert.Equal(t, "new-refresh", fresh.RefreshToken)
	assert.Equal(t, int64(7200), fresh.ExpiresIn)
	assert.GreaterOrEqual(t, fresh.IssuedAt, before)
	// Scope carried over when the response omits it
	assert.Equal(t, "user:read,results:read", fresh.Scope)
}

func TestRefreshErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"invalid_grant", 400, `{"error":"invalid_grant"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrReauthRequired)
		}},
		{"invalid_scope", 400, `{"error":"invalid_scope"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrReauthRequired)
		}},
		{"invalid_client", 400, `{"error":"invalid_client"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidClient)
		}},
		{"bare 401", 401, `nope`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidClient)
		}},
		{"server error", 500, `boom`, func(t *testing.T, err error) {
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, 500, apiErr.Status)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Config{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL})
			_, err := c.Refresh(context.Background(), liveTokens())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestRefreshNetworkFailureIsTransient(t *testing.T) {
	c := NewClient(Config{ClientID: "cid", ClientSecret: "secret",
		TokenURL: "http://127.0.0.1:1/token"})

	_, err := c.Refresh(context.Background(), liveTokens())
	var transient *TransientError
	assert.ErrorAs(t, err, &transient)
}

// apiFixture is an in-process stand-in for the results API with a token
// endpoint and a configurable results handler.
type apiFixture struct {
	t        *testing.T
	srv      *httptest.Server
	refreshc int
	results  http.HandlerFunc
}

func newAPIFixture(t *testing.T, results http.HandlerFunc) *apiFixture {
	f := &apiFixture{t: t, results: results}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshc++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "refreshed-access",
			"refresh_token": "refreshed-refresh",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		f.results(w, r)
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 42, "username": "rower42"},
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) client() *Client {
	return NewClient(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		BaseURL:      f.srv.URL,
		TokenURL:     f.srv.URL + "/oauth/access_token",
	})
}

func writePage(w http.ResponseWriter, page, totalPages int, results ...map[string]any) {
	if results == nil {
		results = []map[string]any{}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"data": results,
		"meta": map[string]any{
			"pagination": map[string]any{
				"current_page": page,
				"total_pages":  totalPages,
				"total":        len(results),
				"count":        len(results),
				"per_page":     50,
			},
		},
	})
}

func apiResult(id int64, date string) map[string]any {
	return map[string]any{
		"id": id, "type": "rower", "distance": 2000, "time": 4800, "date": date,
	}
}

func TestFetchPageRetriesOnceAfter401(t *testing.T) {
	gets := 0
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gets++
		if r.Header.Get("Authorization") != "Bearer refreshed-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writePage(w, 1, 1, apiResult(10, "2025-05-01 07:00:00"))
	})

	page, tokens, err := f.client().FetchPage(context.Background(), liveTokens(), 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, gets)
	assert.Equal(t, 1, f.refreshc)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(10), page.Results[0].ID)

	// The refreshed set comes back so the caller can persist it
	assert.Equal(t, "refreshed-access", tokens.AccessToken)
	assert.Equal(t, "refreshed-refresh", tokens.RefreshToken)
}

func TestFetchPageNoSecondRetry(t *testing.T) {
	gets := 0
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gets++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := f.client().FetchPage(context.Background(), liveTokens(), 1, time.Time{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 2, gets, "exactly one retry after a 401")
	assert.Equal(t, 1, f.refreshc)
}

func TestFetchPageRefreshesExpiredTokenUpFront(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer refreshed-access", r.Header.Get("Authorization"))
		writePage(w, 1, 1)
	})

	expired := liveTokens()
	expired.IssuedAt = time.Now().Add(-2 * time.Hour).UnixMilli()

	_, tokens, err := f.client().FetchPage(context.Background(), expired, 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.refreshc)
	assert.Equal(t, "refreshed-access", tokens.AccessToken)
}

func TestFetchAllPaginates(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-05-01T00:00:00Z", r.URL.Query().Get("updated_after"))
		switch r.URL.Query().Get("page") {
		case "1":
			writePage(w, 1, 3, apiResult(10, "2025-05-01 07:00:00"), apiResult(11, "2025-05-02 07:00:00"))
		case "2":
			writePage(w, 2, 3, apiResult(12, "2025-05-03 07:00:00"))
		case "3":
			writePage(w, 3, 3, apiResult(13, "2025-05-04 07:00:00"))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	updatedAfter := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	results, _, err := f.client().FetchAll(context.Background(), liveTokens(), updatedAfter)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, int64(10), results[0].ID)
	assert.Equal(t, int64(13), results[3].ID)
	assert.Equal(t, time.Date(2025, time.May, 1, 7, 0, 0, 0, time.UTC), results[0].AchievedAt.Time)
}

func TestFetchAllBootstrapOmitsWindow(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("updated_after"))
		writePage(w, 1, 1, apiResult(10, "2025-05-01 07:00:00"))
	})

	results, _, err := f.client().FetchAll(context.Background(), liveTokens(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFetchAllEmptyHistory(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 1, 0)
	})

	results, _, err := f.client().FetchAll(context.Background(), liveTokens(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFetchAllPageCeiling(t *testing.T) {
	orig := maxPages
	maxPages = 3
	defer func() { maxPages = orig }()

	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var n int
		fmt.Sscanf(page, "%d", &n)
		// The server keeps promising more pages than the ceiling allows
		writePage(w, n, 100, apiResult(int64(n), "2025-05-01 07:00:00"))
	})

	_, _, err := f.client().FetchAll(context.Background(), liveTokens(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

func TestFetchMe(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 1, 1)
	})

	athlete, _, err := f.client().FetchMe(context.Background(), liveTokens())
	require.NoError(t, err)
	assert.Equal(t, int64(42), athlete.ID)
	assert.Equal(t, "rower42", athlete.Username)
}
