package corodemo

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	coro "github.com/joeycumines/go-coro"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var configFile string

// BuildCLI constructs the corodemo root command, grounded in
// ChuLiYu-raft-recovery/internal/cli.BuildCLI's cobra tree shape (a
// persistent --config flag plus one subcommand per top-level operation).
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corodemo",
		Short: "corodemo: a host loop demonstrating the coro scheduler",
		Long: `corodemo drives a coro.Manager from a time.Ticker-based host
loop, the way a game engine or UI runtime would drive it from a frame
callback. It starts a couple of illustrative coroutines (a WaitUntil
poller and an AllSlice join) and reports their outcome once they finish,
or stops them when the tick budget runs out.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo host loop",
		Long:  "Construct a coro.Manager, start the demo coroutines, and drive Update from a ticker until they finish or the tick budget is exhausted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runDemo(cfg)
		},
	}
	return cmd
}

// runDemo is the body of the run command: it's a plain function (rather
// than inlined in RunE) so it can be exercised directly from tests without
// going through cobra's flag-parsing machinery.
func runDemo(cfg Config) error {
	var opts []coro.Option
	if cfg.Logging.Format == "stumpy" {
		opts = append(opts, coro.WithLogger(coro.NewStumpyLogger()))
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		opts = append(opts, coro.WithMetrics(reg))
	}

	mgr := coro.NewManager(opts...)
	defer func() { _ = mgr.Close() }()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", coro.Handler(reg))
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			_ = srv.ListenAndServe()
		}()
		defer func() { _ = srv.Close() }()
	}

	pollerDone := false
	poller, err := coro.Start(mgr, func(ctrl *coro.Control) (int, error) {
		ticks := 0
		coro.WaitUntil(ctrl, func() bool {
			ticks++
			return ticks >= 3
		})
		return ticks, nil
	})
	if err != nil {
		return fmt.Errorf("corodemo: starting poller coroutine: %w", err)
	}

	join, err := coro.Start(mgr, func(ctrl *coro.Control) ([]int, error) {
		fns := make([]func(*coro.Control) (int, error), 3)
		for i := range fns {
			i := i
			fns[i] = func(child *coro.Control) (int, error) {
				child.WaitDefault(0)
				return i + 1, nil
			}
		}
		return coro.AllSlice(ctrl, fns)
	})
	if err != nil {
		return fmt.Errorf("corodemo: starting join coroutine: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.tickInterval())
	defer ticker.Stop()

	tickBudget := cfg.Tick.Count
	for {
		select {
		case <-sigCh:
			fmt.Println("corodemo: received shutdown signal, stopping")
			poller.Stop()
			join.Stop()
			return nil
		case <-ticker.C:
			if err := mgr.Update(coro.DefaultPhase, coro.DefaultClock); err != nil {
				return fmt.Errorf("corodemo: update failed: %w", err)
			}
			if !pollerDone && poller.IsDown() {
				pollerDone = true
				v, _, _ := poller.TakeResult()
				fmt.Printf("corodemo: poller finished after %d ticks\n", v)
			}
			if poller.IsDown() && join.IsDown() {
				v, _, _ := join.TakeResult()
				fmt.Printf("corodemo: join finished with %v\n", v)
				return nil
			}
		}
		if tickBudget > 0 {
			tickBudget--
			if tickBudget == 0 {
				fmt.Println("corodemo: tick budget exhausted, stopping")
				poller.Stop()
				join.Stop()
				return nil
			}
		}
	}
}
