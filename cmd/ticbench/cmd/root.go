package cmd

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BerriJ/tictoc"
	"github.com/BerriJ/tictoc/config"
	"github.com/BerriJ/tictoc/export"
	"github.com/BerriJ/tictoc/pkg/welford"
	"github.com/BerriJ/tictoc/report"
)

var (
	cfgFile    string
	workers    int
	iterations int
	listen     string
	jsonOut    bool
)

// rootCmd drives a synthetic fork-join workload against one shared
// timer, then prints the aggregate.
var rootCmd = &cobra.Command{
	Use:   "ticbench",
	Short: "Synthetic workload driver for the tictoc interval timer",
	Long: `ticbench runs N concurrent workers that repeatedly time a compute
phase and a scoped io phase against a single shared timer, then prints
the per-tag summary statistics. With --listen it also serves the live
report endpoints and Prometheus metrics until interrupted.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent workers")
	rootCmd.Flags().IntVar(&iterations, "iterations", 25, "timed iterations per worker")
	rootCmd.Flags().StringVar(&listen, "listen", "", "serve report and metrics endpoints on this address after the run")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "print the aggregate as JSON instead of a table")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFile(cfgFile); err != nil {
			return err
		}
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	timer := tictoc.New(append(cfg.Options(), tictoc.WithLogger(log))...)

	start := time.Now()
	g := new(errgroup.Group)
	for i := 0; i < workers; i++ {
		id := uint64(i)
		g.Go(func() error {
			w := timer.Worker(id)
			for j := 0; j < iterations; j++ {
				w.Tic("compute")
				time.Sleep(time.Duration(1+rand.IntN(4)) * time.Millisecond)
				w.Toc("compute")

				func() {
					defer w.Scoped("io")()
					time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
				}()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("workload finished",
		zap.Int("workers", workers),
		zap.Int("iterations", iterations),
		zap.Duration("elapsed", time.Since(start)),
	)

	snapshot := timer.Aggregate()
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			return fmt.Errorf("encode aggregate: %w", err)
		}
	} else {
		printTable(snapshot)
	}

	if listen == "" {
		return nil
	}
	return serve(timer, log, cfg)
}

func printTable(snapshot map[string]welford.Stats) {
	tags := make([]string, 0, len(snapshot))
	for tag := range snapshot {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Tag", "Count", "Mean", "StdDev", "Min", "Max")
	for _, tag := range tags {
		s := snapshot[tag]
		table.Append([]string{
			tag,
			fmt.Sprintf("%d", s.Count),
			time.Duration(s.Mean).String(),
			time.Duration(s.StdDev()).String(),
			time.Duration(s.Min).String(),
			time.Duration(s.Max).String(),
		})
	}
	table.Render()
}

func serve(timer *tictoc.Timer, log *zap.Logger, cfg config.Config) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(export.NewCollector(timer, cfg.Export.Namespace)); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}

	rep := report.NewServer(timer, log, cfg.Report.Interval.Std())
	mux := http.NewServeMux()
	mux.Handle("/stats", rep)
	mux.Handle("/live", rep)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		log.Info("serving report endpoints", zap.String("addr", listen))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("report server stopped", zap.Error(err))
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh
	return server.Close()
}
