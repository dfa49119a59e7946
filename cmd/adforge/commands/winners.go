package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"adforge/internal/domain"
	"adforge/internal/ranking"
)

func newWinnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "winners",
		Short: "Rank historical ads and print the best ones",
		Long: `Reads a JSON array of performance records from --file or stdin and
prints the top --count entries, cheapest cost per lead first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			count, _ := cmd.Flags().GetInt("count")
			if count < 0 {
				return fmt.Errorf("count must not be negative")
			}

			raw, err := readInput(cmd, path)
			if err != nil {
				return fmt.Errorf("read records: %w", err)
			}
			var records []domain.PerformanceRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("decode records: %w", err)
			}

			ranked := ranking.Rank(records)
			if count < len(ranked) {
				ranked = ranked[:count]
			}
			return printJSON(cmd.OutOrStdout(), ranked)
		},
	}
	cmd.Flags().StringP("file", "f", "-", "JSON file with performance records (- for stdin)")
	cmd.Flags().IntP("count", "n", 3, "number of winners to print")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Print the supported output formats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			type row struct {
				domain.FormatSpec
				TextRegion domain.TextRegion `json:"text_region"`
			}
			rows := make([]row, 0, len(domain.OrderedFormats))
			for _, f := range domain.OrderedFormats {
				spec := domain.FormatSpecs[f]
				rows = append(rows, row{FormatSpec: spec, TextRegion: spec.TextRegion()})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
}
