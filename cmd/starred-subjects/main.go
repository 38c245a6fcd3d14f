package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshsymonds/starred/internal/auth"
	"github.com/joshsymonds/starred/internal/credstore"
	"github.com/joshsymonds/starred/internal/gmail"
	"github.com/joshsymonds/starred/internal/rate"
	"github.com/joshsymonds/starred/internal/runtime"
	"github.com/joshsymonds/starred/internal/starred"
)

type subjectsConfig struct {
	tokenPath      string
	secretsPath    string
	listenAddr     string
	jsonOut        string
	timeout        time.Duration
	consentTimeout time.Duration
	concurrency    int
	rps            int
	burst          int
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("starred-subjects failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() subjectsConfig {
	tokenPath := flag.String("token", "token.json", "cached credential file")
	secretsPath := flag.String("credentials", "credentials.json", "OAuth client secret file")
	listenAddr := flag.String("listen", "127.0.0.1:0", "loopback address for the consent redirect")
	jsonOut := flag.String("json", "", "write JSON report to path")
	timeout := flag.Duration("timeout", 30*time.Second, "timeout per Gmail API call")
	consentTimeout := flag.Duration("consent-timeout", 5*time.Minute, "how long to wait for browser consent")
	concurrency := flag.Int("concurrency", 1, "parallel message reads (<=5)")
	rps := flag.Int("rps", 4, "max requests per second")
	burst := flag.Int("burst", 0, "max requests sent back to back (0 = rps)")
	flag.Parse()

	return subjectsConfig{
		tokenPath:      *tokenPath,
		secretsPath:    *secretsPath,
		listenAddr:     *listenAddr,
		jsonOut:        *jsonOut,
		timeout:        *timeout,
		consentTimeout: *consentTimeout,
		concurrency:    *concurrency,
		rps:            *rps,
		burst:          *burst,
	}
}

func run(cfg subjectsConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()
	store := credstore.New(cfg.tokenPath, cfg.secretsPath)
	flow := &auth.LoopbackFlow{Addr: cfg.listenAddr, Out: os.Stderr, Logger: logger}
	authz := auth.NewAuthorizer(store, flow, logger, auth.Options{
		SecretsPath:    cfg.secretsPath,
		Scopes:         []string{runtime.ScopeReadonly},
		ConsentTimeout: cfg.consentTimeout,
	})

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps, cfg.burst)
		limiter = bucket
		defer bucket.Stop()
	}

	factory := func(ctx context.Context, ac *auth.Client) (gmail.Client, error) {
		return runtime.NewGmailClient(ctx, ac.HTTP)
	}
	svc := starred.NewService(authz, factory, limiter, logger, starred.Options{
		Cap:         starred.DefaultCap,
		Concurrency: cfg.concurrency,
		Timeout:     cfg.timeout,
	})

	results, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := starred.WriteLines(os.Stdout, results); err != nil {
		return err
	}
	if cfg.jsonOut != "" {
		if err := starred.WriteJSON(svc.NewReport(results), cfg.jsonOut); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
		logger.Info("wrote json report", "path", cfg.jsonOut)
	}
	return nil
}
