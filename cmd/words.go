package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/words"
)

var (
	wordsLimit     int
	wordsJSON      bool
	wordsFromModel bool
)

var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "List suspicious words by spam log-odds",
	Long: `Print the suspicious-words table the scanner highlights with.

By default the table is the exported words document next to the model,
falling back to the seed list when it is missing. --from-model derives
the table from the model's feature log-probabilities instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		table := snap.Table
		if wordsFromModel {
			table = words.FromModel(snap.Model)
		}
		table = table.Top(wordsLimit)

		out := cmd.OutOrStdout()
		if wordsJSON {
			if table == nil {
				table = words.Table{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		}

		fmt.Fprintf(out, "🔥 Suspicious words (%d)\n", len(table))
		fmt.Fprintf(out, "═══════════════════════════════════════\n")
		for i, e := range table {
			marker := "  "
			if e.Score > 0 {
				marker = "🚩"
			}
			fmt.Fprintf(out, "%s %4d. %-24s %+.6f\n", marker, i+1, e.Word, e.Score)
		}
		return nil
	},
}

func init() {
	wordsCmd.Flags().IntVarP(&wordsLimit, "limit", "n", 20, "Number of words to list, 0 = all")
	wordsCmd.Flags().BoolVar(&wordsJSON, "json", false, "Print the table as JSON")
	wordsCmd.Flags().BoolVar(&wordsFromModel, "from-model", false, "Derive the table from the model instead of the words document")
}
