// Command hotspotguide generates a static JSON hotspot guide from an eBird
// Basic Dataset download: a sampling event file for effort and an observation
// file for detections.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aingebritson/ebird-hotspot-guide/internal/config"
	"github.com/aingebritson/ebird-hotspot-guide/internal/ebird"
	"github.com/aingebritson/ebird-hotspot-guide/internal/observability"
	"github.com/aingebritson/ebird-hotspot-guide/internal/output"
	"github.com/aingebritson/ebird-hotspot-guide/internal/pipeline"
)

// version is set via -ldflags at release build time.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "hotspotguide",
		Short:         "Generate hotspot occurrence guides from eBird Basic Dataset files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default hotspotguide.yaml in the working directory)")

	root.AddCommand(newGenerateCommand(&cfgFile))
	return root
}

func newGenerateCommand(cfgFile *string) *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run both aggregation passes and write the JSON guide",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("data-dir", ".", "directory holding the EBD observation and sampling files")
	flags.String("main-file", "", "observation file path (overrides auto-detection)")
	flags.String("sampling-file", "", "sampling event file path (overrides auto-detection)")
	flags.String("output-dir", "output", "directory to write the guide into")
	flags.Int("chunk-size", 100000, "observation rows per chunk")
	flags.Int("min-checklists", 10, "minimum checklists for a hotspot to be included")
	flags.Int("top-hotspots", 25, "hotspots per species in the index summaries")
	flags.String("metrics-addr", "", "serve Prometheus metrics at this address during the run")

	for flag, key := range map[string]string{
		"data-dir":       "data_dir",
		"main-file":      "main_file",
		"sampling-file":  "sampling_file",
		"output-dir":     "output_dir",
		"chunk-size":     "chunk_size",
		"min-checklists": "min_checklists",
		"top-hotspots":   "top_hotspots",
		"metrics-addr":   "metrics_addr",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(flag)))
	}

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mainFile, samplingFile := cfg.MainFile, cfg.SamplingFile
	if mainFile == "" || samplingFile == "" {
		var err error
		mainFile, samplingFile, err = ebird.FindDataFiles(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("locate data files: %w", err)
		}
	}
	logger.Info("input files resolved", "observations", mainFile, "sampling", samplingFile)

	if cfg.MetricsAddr != "" {
		srv := observability.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	sources := pipeline.Sources{
		Checklists: func() (pipeline.ChecklistReader, error) {
			s := &ebird.SamplingSource{Path: samplingFile, ChunkSize: cfg.SamplingChunkSize}
			return s.Open()
		},
		Observations: func() (pipeline.ObservationReader, error) {
			s := &ebird.ObservationSource{Path: mainFile, ChunkSize: cfg.ChunkSize}
			return s.Open()
		},
	}

	p := pipeline.New(sources, cfg.SeasonPartition(), cfg.Thresholds(), logger, metrics)
	guides, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("generate guides: %w", err)
	}

	w := &output.Writer{
		OutputDir: cfg.OutputDir,
		TopN:      cfg.TopHotspots,
		Version:   version,
		Logger:    logger,
	}
	if err := w.Write(guides); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("guide generation complete",
		"species", guides.Stats.SpeciesCount,
		"hotspots", guides.Stats.HotspotsIncluded,
		"total_checklists", guides.Stats.TotalChecklists,
		"duration", guides.Stats.FinishedAt.Sub(guides.Stats.StartedAt),
	)
	return nil
}
