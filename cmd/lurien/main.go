// Command lurien runs the demo workloads under the scope-sampling profiler
// and can serve a profiled HTTP endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/spf13/cobra"

	"github.com/AlexKent3141/lurien"
	httpinstrumentation "github.com/AlexKent3141/lurien/instrumentation/http"
	sqlinstrumentation "github.com/AlexKent3141/lurien/instrumentation/sql"
	"github.com/AlexKent3141/lurien/internal/demo"
	"github.com/AlexKent3141/lurien/pkg/config"
	"github.com/AlexKent3141/lurien/profiling"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           "lurien",
		Short:         "Scope-sampling profiler demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing lurien.yaml")

	loadConfig := func() (config.Config, error) {
		return config.Load(configDir)
	}

	root.AddCommand(newRunCmd(loadConfig), newRecursiveCmd(loadConfig), newServeCmd(loadConfig))
	return root
}

// withProbe starts a probe, runs fn and shuts the probe down.
func withProbe(cmd *cobra.Command, loadConfig func() (config.Config, error), fn func(*lurien.Probe) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	probe, err := lurien.NewProbe(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	runErr := fn(probe)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, probe.Shutdown(shutdownCtx))
}

func newRunCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		threads int
		target  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Profile the nested workload on several goroutines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProbe(cmd, loadConfig, func(probe *lurien.Probe) error {
				var wg sync.WaitGroup
				for i := 0; i < threads; i++ {
					wg.Add(1)
					th := probe.Profiler().NewThread(fmt.Sprintf("worker-%d", i))
					go func() {
						defer wg.Done()
						defer th.Close()
						demo.Nested(th, target)
					}()
				}
				wg.Wait()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&threads, "threads", 3, "number of profiled goroutines")
	cmd.Flags().IntVar(&target, "target", 100_000_000, "loop length of the workload")
	return cmd
}

func newRecursiveCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		rounds int
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "recursive",
		Short: "Profile a recursive workload with a self-named scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProbe(cmd, loadConfig, func(probe *lurien.Probe) error {
				th := probe.Profiler().NewThread("main")
				total := demo.Recursive(th, rounds, depth)
				th.Close()
				fmt.Fprintln(cmd.ErrOrStderr(), total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 1000, "number of recursive calls from the top")
	cmd.Flags().IntVar(&depth, "depth", 1000, "recursion depth")
	return cmd
}

func newServeCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		target   int
		dbDriver string
		dbDSN    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a profiled HTTP endpoint and the JSON reporter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return withProbe(cmd, loadConfig, func(probe *lurien.Probe) error {
				db, err := sqlinstrumentation.Open(dbDriver, dbDSN)
				if err != nil {
					return err
				}
				defer db.Close()

				handler := newServeHandler(probe, db, cfg.ReporterPath, target)

				server := &http.Server{
					Addr:              cfg.HTTPAddr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					fmt.Fprintf(cmd.ErrOrStderr(), "Serving on %s (work: /work, query: /query, report: %s)\n", cfg.HTTPAddr, cfg.ReporterPath)
					errCh <- server.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("could not start server: %w", err)
					}
					return nil
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().IntVar(&target, "target", 1_000_000, "loop length per request")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite3", "database/sql driver for /query (sqlite3 or postgres)")
	cmd.Flags().StringVar(&dbDSN, "db-dsn", ":memory:", "data source name for /query")
	return cmd
}

// newServeHandler routes the reporter path to the probe's JSON report and
// every other path to the profiled demo endpoints.
func newServeHandler(probe *lurien.Probe, db *sql.DB, reporterPath string, target int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		th := profiling.ThreadFromContext(r.Context())
		fmt.Fprintln(w, demo.Nested(th, target))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var n int
		if err := db.QueryRowContext(r.Context(), "SELECT 1").Scan(&n); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, n)
	})

	handler := http.NewServeMux()
	handler.Handle(reporterPath, probe.Handler())
	handler.Handle("/", httpinstrumentation.NewMiddleware(mux, "lurien-demo", probe.Profiler()))
	return handler
}
