package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/config"
	"github.com/alnah/go-htmlpdf/internal/hints"
	"github.com/alnah/go-htmlpdf/internal/logging"
	"github.com/alnah/go-htmlpdf/internal/yamlutil"
	"go.uber.org/zap"
)

// run executes the command and returns its exit code.
func run(ctx context.Context, args []string, env *Environment) int {
	if len(args) > 0 && args[0] == "doctor" {
		return runDoctorCmd(args[1:], env, defaultHooks)
	}

	flags, sources, err := parseFlags(args, env.Stderr)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	switch {
	case flags.common.help:
		return ExitSuccess
	case flags.common.version:
		fmt.Fprintf(env.Stdout, "htmlpdf %s\n", Version)
		return ExitSuccess
	}

	if err := execute(ctx, flags, sources, env); err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// execute merges configuration, renders every source and reports results.
func execute(ctx context.Context, flags *cliFlags, sources []string, env *Environment) error {
	stderr := &lockedWriter{w: env.Stderr}
	warnUnknownEnvVars(env.Environ(), stderr)

	cfg, err := resolveConfig(flags, env)
	if err != nil {
		return err
	}

	if flags.common.dumpConfig {
		out, err := yamlutil.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = env.Stdout.Write(out)
		return err
	}

	params, err := buildParams(cfg, flags)
	if err != nil {
		return err
	}
	jobs, err := planJobs(sources, params.output, params.base64)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidValue, err)
	}
	defer closeLog()

	workers := min(htmlpdf.ResolvePoolSize(cfg.Workers), len(jobs))
	logger.Debug("rendering",
		zap.Int("sources", len(jobs)),
		zap.Int("workers", workers),
		zap.Int("port", cfg.Browser.Port),
		zap.String("trigger", cfg.Request.Trigger),
	)

	gen := env.NewRenderer(cfg, workers, logger)
	defer func() {
		if err := gen.Close(); err != nil {
			logger.Debug("closing renderer", zap.Error(err))
		}
	}()

	results := newBatchRenderer(gen, params, env, stderr, logger).renderAll(ctx, jobs, workers)
	summary := printResults(stderr, results, flags.common.verbose)
	if summary.Failed == 0 {
		return nil
	}

	err = withHint(firstError(results), cfg)
	if len(results) > 1 {
		return fmt.Errorf("%d of %d sources failed, first: %w", summary.Failed, len(results), err)
	}
	return err
}

// resolveConfig merges defaults, config file, environment and flags, in
// increasing order of precedence.
func resolveConfig(flags *cliFlags, env *Environment) (*config.Config, error) {
	envCfg, err := loadEnvConfig(env.Getenv)
	if err != nil {
		return nil, err
	}

	name := flags.common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		if cfg, err = config.LoadConfig(name); err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(configSearchPaths(name)))
			}
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configSearchPaths lists where a config name is looked up, for hints.
func configSearchPaths(name string) []string {
	paths := []string{name + ".yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "htmlpdf", name+".yaml"))
	}
	return paths
}

// withHint appends an actionable hint to err.
func withHint(err error, cfg *config.Config) error {
	var hint string
	switch {
	case errors.Is(err, htmlpdf.ErrTriggerTimeout):
		hint = hints.ForTrigger(cfg.Request.Trigger)
	case errors.Is(err, htmlpdf.ErrOperationTimeout):
		hint = hints.ForTimeout()
	case errors.Is(err, htmlpdf.ErrAttach):
		hint = hints.ForAttach(cfg.Browser.Port)
	case errors.Is(err, htmlpdf.ErrLaunch):
		hint = hints.ForLaunch()
	case errors.Is(err, htmlpdf.ErrNavigation):
		hint = hints.ForNavigation()
	case errors.Is(err, ErrWriteOutput), errors.Is(err, htmlpdf.ErrFileOutput):
		hint = hints.ForOutputDirectory()
	}
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w%s", err, hint)
}
