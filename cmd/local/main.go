package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	"github.com/nemanja-m/parmr/pkg/jobs"
	"github.com/nemanja-m/parmr/pkg/local"

	_ "github.com/nemanja-m/parmr/examples/anagram"
	_ "github.com/nemanja-m/parmr/examples/grep"
	_ "github.com/nemanja-m/parmr/examples/wordcount"
)

func main() {
	params := make(map[string]string)

	var (
		configPath = flag.String("config", "", "path to config file")
		jobName    = flag.String("job", "", fmt.Sprintf("job to run, one of %v", jobs.List()))
		input      = flag.String("input", "", "comma separated input file glob patterns")
		output     = flag.String("output", "", "output directory (results are printed when empty)")
		partitions = flag.Int("partitions", 4, "number of output partitions")
	)
	flag.Func("param", "job parameter as key=value (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		params[key] = value
		return nil
	})
	flag.Parse()

	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "job":
			overrides["job"] = *jobName
		case "input":
			overrides["input"] = strings.Split(*input, ",")
		case "output":
			overrides["output"] = *output
		case "partitions":
			overrides["partitions"] = *partitions
		}
	})

	cfg, err := config.LoadLocal(*configPath, overrides)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLoggerTo(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	job, err := jobs.Get(cfg.Job)
	if err != nil {
		logger.Fatal("Unknown job", "job", cfg.Job, "available", jobs.List())
	}

	// Flags take precedence over configured parameters.
	jobParams := make(map[string]string, len(cfg.Params)+len(params))
	maps.Copy(jobParams, cfg.Params)
	maps.Copy(jobParams, params)
	if err := job.Configure(jobParams); err != nil {
		logger.Fatal("Invalid job parameters", "job", cfg.Job, "error", err)
	}

	files, err := local.FindFiles(cfg.Input...)
	if err != nil {
		logger.Fatal("Failed to resolve input", "input", cfg.Input, "error", err)
	}
	if len(files) == 0 {
		logger.Fatal("No input files found", "input", cfg.Input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting job",
		"job", cfg.Job,
		"num_files", len(files),
		"output", cfg.Output,
		"partitions", cfg.Partitions,
	)

	start := time.Now()
	err = job.Run(ctx, jobs.Request{
		Files:       files,
		Output:      cfg.Output,
		Partitions:  cfg.Partitions,
		Diagnostics: os.Stdout,
		Options:     []local.Option{local.WithLogger(logger)},
	})
	if err != nil {
		logger.Fatal("Job failed", "job", cfg.Job, "error", err)
	}

	logger.Info("Job completed", "job", cfg.Job, "duration_ms", time.Since(start).Milliseconds())
}
