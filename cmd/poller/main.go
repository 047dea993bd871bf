package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tallydesk/election-poller/internal/api"
	"github.com/tallydesk/election-poller/internal/app"
	"github.com/tallydesk/election-poller/internal/config"
	"github.com/tallydesk/election-poller/internal/logging"
)

// Exit codes mirror what operators' wrapper scripts already check for.
const (
	exitMissingCredentials = 2
	exitTokenFailure       = 3
	exitNoCategories       = 4
)

func main() {
	var (
		cfgPath      string
		once         bool
		intervalFlag time.Duration
		modeOverride string
	)

	root := &cobra.Command{
		Use:           "poller",
		Short:         "Polls the election tally API and publishes a consolidated CSV snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath, once, intervalFlag, modeOverride)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")
	root.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	root.Flags().DurationVar(&intervalFlag, "interval", 0, "override poll interval")
	root.Flags().StringVar(&modeOverride, "mode", "", "override ranking mode: full|topk")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfgPath string, once bool, interval time.Duration, modeOverride string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if interval > 0 {
		cfg.Interval = interval
	}
	if v := strings.ToLower(strings.TrimSpace(modeOverride)); v != "" {
		cfg.Ranking.Mode = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, a, log)
		if err := apiServer.Start(ctx); err != nil {
			log.Warn("api server failed to start", zap.Error(err))
		}
		defer func() { _ = apiServer.Shutdown(context.Background()) }()
	}

	return a.Run(ctx, once)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrNoCredentials):
		return exitMissingCredentials
	case errors.Is(err, app.ErrToken):
		return exitTokenFailure
	case errors.Is(err, app.ErrNoCategories):
		return exitNoCategories
	}
	return 1
}
