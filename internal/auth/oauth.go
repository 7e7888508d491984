package auth

import (
	"time"

	"golang.org/x/oauth2"
)

const (
	// Concept2 logbook OAuth endpoints
	AuthURL  = "https://log.concept2.com/oauth/authorize"
	TokenURL = "https://log.concept2.com/oauth/access_token"
)

// Scopes required for our app (the logbook uses comma-separated scopes)
var Scopes = []string{
	"user:read,results:read",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8097/callback"
	TokenURL     string // override for testing
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: tokenURL,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// GrantedScope returns the scope string the server granted with the token,
// falling back to the requested scopes when the response omits it.
func GrantedScope(token *oauth2.Token) string {
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		return scope
	}
	return Scopes[0]
}

// ExpiresIn returns the token lifetime in seconds from the token response.
func ExpiresIn(token *oauth2.Token) int64 {
	if v, ok := token.Extra("expires_in").(float64); ok && v > 0 {
		return int64(v)
	}
	if !token.Expiry.IsZero() {
		return int64(time.Until(token.Expiry).Seconds())
	}
	return 0
}
