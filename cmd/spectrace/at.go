package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/spectrace/extract"
	"github.com/c360studio/spectrace/render"
	"github.com/c360studio/spectrace/rule"
)

func atCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "at <file:line | file:start-end>",
		Short: "Show rule references at a source location",
		Long: `Prints the rule references found at a specific line or line range,
for editor integrations that look up what a piece of code traces to.

  spectrace at src/auth.go:42
  spectrace at src/auth.go:40-60`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logger := setupLogging(logLevel)

			file, start, end, err := parseLocation(args[0])
			if err != nil {
				return err
			}

			results, err := runPipeline(cmd.Context(), configPath, logger)
			if err != nil {
				return err
			}

			var refs []rule.Reference
			for _, res := range results {
				for _, ref := range res.scan.References {
					if ref.File == file {
						refs = append(refs, ref)
					}
				}
			}
			refs = extract.InRange(refs, start, end)

			if jsonOut {
				if refs == nil {
					refs = []rule.Reference{}
				}
				return json.NewEncoder(os.Stdout).Encode(refs)
			}
			if len(refs) == 0 {
				fmt.Printf("No references at %s\n", args[0])
				return nil
			}
			render.New(os.Stdout).References(refs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit references as JSON")
	return cmd
}

// parseLocation splits "file:line" or "file:start-end" into its parts. The
// file keeps any earlier colons so Windows drive letters survive.
func parseLocation(arg string) (file string, start, end int, err error) {
	idx := strings.LastIndexByte(arg, ':')
	if idx < 0 {
		return "", 0, 0, fmt.Errorf("expected file:line or file:start-end, got %q", arg)
	}
	file = arg[:idx]
	rangeTok := arg[idx+1:]

	if lo, hi, ok := strings.Cut(rangeTok, "-"); ok {
		start, err = strconv.Atoi(lo)
		if err == nil {
			end, err = strconv.Atoi(hi)
		}
	} else {
		start, err = strconv.Atoi(rangeTok)
		end = start
	}
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid line range %q: %w", rangeTok, err)
	}
	if start < 1 || end < start {
		return "", 0, 0, fmt.Errorf("invalid line range %q", rangeTok)
	}
	return file, start, end, nil
}
