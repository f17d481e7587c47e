package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/spectrace/config"
	"github.com/c360studio/spectrace/coverage"
	"github.com/c360studio/spectrace/fetch"
	"github.com/c360studio/spectrace/render"
	"github.com/c360studio/spectrace/rule"
	"github.com/c360studio/spectrace/scanner"
	"github.com/c360studio/spectrace/spec"
)

func rootCmd() *cobra.Command {
	var (
		configPath string
		threshold  float64
		checkOnly  bool
		verbose    bool
		jsonOut    bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Requirement-to-code traceability",
		Long: `Spectrace cross-references rule definitions in specification documents
against bracketed references in source comments and reports coverage.

Rules are defined in spec documents as r[rule.id] lines and referenced from
code comments as [impl rule.id], [verify rule.id], or the bare [rule.id]
form. The root command runs one coverage pass and exits non-zero when any
spec fails the threshold or contains references to unknown rules.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(logLevel)
			results, err := runPipeline(cmd.Context(), configPath, logger)
			if err != nil {
				return err
			}

			if jsonOut {
				reports := make([]*coverage.Report, 0, len(results))
				for _, res := range results {
					reports = append(reports, res.report)
				}
				return json.NewEncoder(os.Stdout).Encode(reports)
			}

			r := render.New(os.Stdout)
			failing := false
			for _, res := range results {
				if !checkOnly {
					r.Report(res.report, verbose)
					r.Diagnostics(res.scan.Warnings, res.sourceFor())
				}
				if !res.report.IsPassing(threshold) {
					failing = true
				}
			}
			if failing {
				return fmt.Errorf("coverage below %.1f%% or invalid references present", threshold)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: .config/spectrace/config.yaml under the project root)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum coverage percentage to pass")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check, don't print the detailed report")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every reference grouped by verb")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit reports as JSON")

	cmd.AddCommand(atCmd())
	cmd.AddCommand(rulesCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// locateConfig resolves the project root and config path. An explicit
// --config wins; otherwise the root is discovered by walking up from the
// working directory.
func locateConfig(configPath string) (root, cfgPath string, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("get working directory: %w", err)
	}
	if configPath != "" {
		return cwd, configPath, nil
	}
	root = config.FindProjectRoot(cwd)
	return root, config.DefaultPath(root), nil
}

// specResult holds the pipeline output for one configured spec.
type specResult struct {
	cfg      config.SpecConfig
	manifest *rule.Manifest
	scan     *scanner.Result
	report   *coverage.Report
	contents map[string]string
}

// sourceFor exposes scanned file contents for diagnostic excerpts.
func (r *specResult) sourceFor() render.SourceFunc {
	return func(path string) (string, bool) {
		content, ok := r.contents[path]
		return content, ok
	}
}

// runPipeline loads the config and computes coverage for every spec. One-shot
// mode requires a config file: with no specs there is nothing to measure.
func runPipeline(ctx context.Context, configPath string, logger *slog.Logger) ([]*specResult, error) {
	root, cfgPath, err := locateConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config file at %s (run from a project with a spectrace config, or pass --config)", cfgPath)
		}
		return nil, err
	}
	if len(cfg.Specs) == 0 {
		return nil, fmt.Errorf("config %s declares no specs", cfgPath)
	}

	remote := fetch.NewClient()
	sc := scanner.New(root, logger)
	baseDir := filepath.Dir(cfgPath)

	var results []*specResult
	for _, specCfg := range cfg.Specs {
		loader := spec.NewLoader(spec.NewParser(specCfg.Marker), remote, logger)
		manifest, err := loader.LoadManifest(ctx, spec.Source{
			Name:      specCfg.Name,
			RulesURL:  specCfg.RulesURL,
			RulesFile: specCfg.RulesFile,
			BaseDir:   baseDir,
		})
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", specCfg.Name, err)
		}

		scanRes, err := sc.Scan(specCfg.IncludePatterns(), specCfg.ExcludePatterns(), nil)
		if err != nil {
			return nil, fmt.Errorf("spec %q: scan: %w", specCfg.Name, err)
		}

		results = append(results, &specResult{
			cfg:      specCfg,
			manifest: manifest,
			scan:     scanRes,
			report:   coverage.Compute(specCfg.Name, manifest, scanRes.References),
			contents: readContents(root, scanRes.Files),
		})
	}
	return results, nil
}

// readContents re-reads the scanned files so diagnostics can show excerpts.
// Files that vanished since the scan are simply omitted.
func readContents(root string, files []string) map[string]string {
	contents := make(map[string]string, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		contents[rel] = string(data)
	}
	return contents
}
