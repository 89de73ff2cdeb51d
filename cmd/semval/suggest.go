package main

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/glob"
)

func newSuggestCmd(a *app) *cobra.Command {
	var (
		entries     []string
		entriesFile string
	)
	cmd := &cobra.Command{
		Use:   "suggest EXPRESSION",
		Short: "Complete the open %%term%% of a glob expression",
		Long: `Prints the completions for the term left open at the end of EXPRESSION as
JSON. Candidates come from --entry, --entries-file (one per line) or, when
neither is given, the type names of the descriptor catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates := append([]string(nil), entries...)
			if entriesFile != "" {
				lines, err := readLines(entriesFile)
				if err != nil {
					return err
				}
				candidates = append(candidates, lines...)
			}
			if len(candidates) == 0 {
				source, err := a.openSource(cmd.Context())
				if err != nil {
					return err
				}
				set, ok := source.(descriptor.Set)
				if !ok {
					return errors.New("type name suggestions need --catalog or --openapi")
				}
				candidates = set.Names()
			}
			return writeJSON(a.out, glob.Suggestions(args[0], candidates))
		},
	}
	cmd.Flags().StringArrayVar(&entries, "entry", nil, "candidate entry (repeatable)")
	cmd.Flags().StringVar(&entriesFile, "entries-file", "", "file with one candidate entry per line")
	return cmd
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}
