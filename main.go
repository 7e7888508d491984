package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"ergsync/internal/auth"
	"ergsync/internal/config"
	"ergsync/internal/logbook"
	"ergsync/internal/service"
	"ergsync/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fullSync := flag.Bool("full", false, "ignore the last sync timestamp and fetch the entire history")
	rebuild := flag.Bool("rebuild", false, "delete all PR events and recalculate from scratch")
	reauth := flag.Bool("reauth", false, "discard stored tokens and run the authorization flow again")
	flag.Parse()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("You need to add your Concept2 logbook API credentials.")
		fmt.Println("Request them at: https://log.concept2.com/developers")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	// Open database
	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client := logbook.NewClient(logbook.Config{
		ClientID:     cfg.Concept2.ClientID,
		ClientSecret: cfg.Concept2.ClientSecret,
		BaseURL:      cfg.Concept2.BaseURL,
		TokenURL:     cfg.Concept2.TokenURL,
	})

	athleteID, err := db.CurrentAthleteID()
	if *reauth || errors.Is(err, store.ErrNoAuth) {
		fmt.Println("Starting OAuth flow...")
		athleteID, err = authenticate(ctx, db, cfg, client)
		if err != nil {
			return fmt.Errorf("authentication: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("checking auth: %w", err)
	}

	// The whole sync+recalculate pipeline runs under one wall-clock budget.
	budget := time.Duration(cfg.Sync.BudgetMinutes) * time.Minute
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	syncer := service.NewSyncer(client, db, logger)
	syncRes, err := syncer.Sync(runCtx, athleteID, *fullSync)
	if logbook.IsReauth(err) {
		// Stored tokens were soft-deleted; get a fresh grant and retry once.
		fmt.Println("Stored tokens are no longer valid. Re-authenticating...")
		athleteID, err = authenticate(ctx, db, cfg, client)
		if err != nil {
			return fmt.Errorf("re-authentication: %w", err)
		}
		syncRes, err = syncer.Sync(runCtx, athleteID, *fullSync)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	recalc := service.NewRecalculator(db, logger)
	var recalcRes *service.RecalcResult
	if *rebuild {
		recalcRes, err = recalc.Rebuild(runCtx, athleteID)
	} else {
		recalcRes, err = recalc.Smart(runCtx, athleteID)
	}
	if err != nil {
		return fmt.Errorf("recalculating records: %w", err)
	}

	fmt.Printf("Synced %d results (%d new), created %d PR events across %d activity types.\n",
		syncRes.Fetched, syncRes.Stored, recalcRes.EventsCreated, recalcRes.Rescoped)
	return nil
}

func authenticate(ctx context.Context, db *store.DB, cfg *config.Config, client *logbook.Client) (int64, error) {
	oauthCfg := auth.NewOAuthConfig(auth.Config{
		ClientID:     cfg.Concept2.ClientID,
		ClientSecret: cfg.Concept2.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
		TokenURL:     cfg.Concept2.TokenURL,
	})

	token, err := auth.Authenticate(ctx, oauthCfg)
	if err != nil {
		return 0, err
	}

	tokens := logbook.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    auth.ExpiresIn(token),
		IssuedAt:     time.Now().UnixMilli(),
		Scope:        auth.GrantedScope(token),
	}

	athlete, tokens, err := client.FetchMe(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("fetching athlete profile: %w", err)
	}

	if err := db.SaveTokens(&store.Tokens{
		AthleteID:    athlete.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		IssuedAt:     tokens.IssuedAt,
		Scope:        tokens.Scope,
	}); err != nil {
		return 0, fmt.Errorf("saving auth: %w", err)
	}

	fmt.Println()
	fmt.Printf("Successfully authenticated as %s (athlete %d)!\n", athlete.Username, athlete.ID)
	return athlete.ID, nil
}
