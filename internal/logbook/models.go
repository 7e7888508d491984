package logbook

import (
	"fmt"
	"strings"
	"time"
)

// expiryBuffer treats tokens as expired this long before they actually are,
// so a request started with a nearly-dead token doesn't 401 mid-flight.
const expiryBuffer = 5 * time.Minute

// TokenSet holds an athlete's OAuth tokens as returned by the token endpoint.
// IssuedAt is stamped client-side (epoch milliseconds) when the response is
// received; the server only reports a relative expires_in.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	IssuedAt     int64  `json:"issued_at"`  // epoch ms, client-stamped
	Scope        string `json:"scope"`
}

// Expired reports whether the access token should be considered expired at
// now. A token with a missing issue time or lifetime is always expired.
func (t TokenSet) Expired(now time.Time) bool {
	if t.IssuedAt == 0 || t.ExpiresIn == 0 {
		return true
	}
	expiry := time.UnixMilli(t.IssuedAt + t.ExpiresIn*1000)
	return !now.Add(expiryBuffer).Before(expiry)
}

// Result is a single workout result from the results API.
type Result struct {
	ID         int64      `json:"id"`
	Sport      string     `json:"type"`
	Distance   int64      `json:"distance"` // meters
	Time       int64      `json:"time"`     // tenths of a second
	AchievedAt ResultTime `json:"date"`
}

// Athlete is the minimal profile returned by /users/me.
type Athlete struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Pagination is the paging envelope the API returns under meta.pagination.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
	Count       int `json:"count"`
	PerPage     int `json:"per_page"`
}

// Page is one page of results.
type Page struct {
	Results    []Result
	Pagination Pagination
}

type pageEnvelope struct {
	Data []Result `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

type meEnvelope struct {
	Data Athlete `json:"data"`
}

// ResultTime decodes the API's timestamp format. The API emits
// "2006-01-02 15:04:05" (UTC); RFC3339 is accepted as well.
type ResultTime struct {
	time.Time
}

const resultTimeLayout = "2006-01-02 15:04:05"

func (rt *ResultTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		rt.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(resultTimeLayout, s); err == nil {
		rt.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parsing result date %q: %w", s, err)
	}
	rt.Time = t.UTC()
	return nil
}

func (rt ResultTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + rt.UTC().Format(resultTimeLayout) + `"`), nil
}
