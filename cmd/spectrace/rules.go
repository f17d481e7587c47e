package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/spectrace/render"
	"github.com/c360studio/spectrace/rule"
)

func rulesCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:          "rules",
		Short:        "List the rules defined by each configured spec",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logger := setupLogging(logLevel)

			results, err := runPipeline(cmd.Context(), configPath, logger)
			if err != nil {
				return err
			}

			if jsonOut {
				byName := make(map[string][]*rule.Definition, len(results))
				for _, res := range results {
					byName[res.cfg.Name] = res.manifest.Definitions()
				}
				return json.NewEncoder(os.Stdout).Encode(byName)
			}

			r := render.New(os.Stdout)
			for _, res := range results {
				if len(results) > 1 {
					os.Stdout.WriteString(res.cfg.Name + "\n")
				}
				if err := r.RulesTable(res.manifest); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit definitions as JSON")
	return cmd
}
