package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/client"
	"github.com/linkforge/credsync-server-go/internal/harvester"
)

// collectorConfig is everything the passive client needs: where the sync
// server lives, the one-time code the owner handed over, and what to harvest.
type collectorConfig struct {
	ServerURL   string `env:"SERVER_URL,required"`
	PairingCode string `env:"PAIRING_CODE,required"`
	CookieFile  string `env:"COOKIE_FILE,required"`

	TargetDomain  string   `env:"TARGET_DOMAIN,required"`
	CandidateURLs []string `env:"CANDIDATE_URLS" envSeparator:","`

	// DropTokenOnExit invalidates the ephemeral token after a successful
	// sync instead of letting it ride out its TTL.
	DropTokenOnExit bool `env:"DROP_TOKEN_ON_EXIT" envDefault:"true"`

	TimeoutSeconds int    `env:"TIMEOUT_SECONDS" envDefault:"120"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c collectorConfig) target() harvester.Target {
	target := harvester.Target{Domain: c.TargetDomain}

	if len(c.CandidateURLs) > 0 {
		for i, url := range c.CandidateURLs {
			target.Candidates = append(target.Candidates, harvester.Candidate{
				Name:    fmt.Sprintf("candidate-%d", i+1),
				URL:     url,
				Profile: harvester.DesktopProfile(),
			})
		}
		return target
	}

	// Default walk: the desktop shell embeds the richest token set, the
	// mobile shell is the fallback when desktop serves degraded.
	target.Candidates = []harvester.Candidate{
		{
			Name:    "desktop-home",
			URL:     fmt.Sprintf("https://www.%s/", c.TargetDomain),
			Profile: harvester.DesktopProfile(),
		},
		{
			Name:    "mobile-home",
			URL:     fmt.Sprintf("https://m.%s/", c.TargetDomain),
			Profile: harvester.MobileProfile(),
		},
	}
	return target
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var cfg collectorConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("collector run failed")
	}
}

func run(ctx context.Context, cfg collectorConfig) error {
	target := cfg.target()

	// Read the local session before spending the one-time code; a logged-out
	// environment would burn the code for nothing.
	session, err := harvester.ReadLocalSession(harvester.FileCookieSource{Path: cfg.CookieFile}, target)
	if err != nil {
		return err
	}
	if !session.LoggedIn {
		return fmt.Errorf("no authenticated session in %s for %s", cfg.CookieFile, cfg.TargetDomain)
	}

	api := client.New(cfg.ServerURL)

	claim, err := api.Claim(ctx, cfg.PairingCode)
	if err != nil {
		return err
	}
	log.Info().Str("owner", claim.OwnerDisplayName).Msg("paired with owner")

	bundle, err := harvester.New(target).AcquireBundle(ctx, session)
	if err != nil {
		return err
	}

	result, err := api.Sync(ctx, claim.EphemeralToken, *bundle)
	if err != nil {
		return err
	}

	log.Info().
		Str("externalId", result.ExternalID).
		Str("tokenStatus", string(result.TokenStatus)).
		Bool("isNew", result.IsNew).
		Bool("needsSupplementaryAuth", bundle.NeedsSupplementaryAuth).
		Msg("harvest synced")

	if cfg.DropTokenOnExit {
		if err := api.InvalidateToken(ctx, claim.EphemeralToken); err != nil {
			log.Warn().Err(err).Msg("failed to drop ephemeral token, it will expire on its own")
		}
	}

	return nil
}
