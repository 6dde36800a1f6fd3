package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/scanner"
)

var (
	scanFile    string
	scanEML     string
	scanExplain int
	scanJSON    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Classify a message and highlight suspicious words",
	Long: `Classify a single message with the trained model.

The text can be given as an argument, read from a plain text file with
--file, parsed from a raw email with --eml, or piped on stdin when
neither is set. Pass - to --file to read stdin explicitly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := scanInput(cmd, args)
		if err != nil {
			return err
		}

		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		s := scanner.New(nil)
		s.Swap(snap)

		res, err := s.Scan(text)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if scanJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		verdict := "✅ HAM"
		if res.IsSpam {
			verdict = "🚫 SPAM"
		}
		fmt.Fprintf(out, "%s (confidence %.4f)\n", verdict, res.Confidence)
		if res.SuspiciousWordCount > 0 {
			fmt.Fprintf(out, "🔍 Suspicious words (%d): %s\n", res.SuspiciousWordCount, strings.Join(res.SuspiciousWordsFound, ", "))
			fmt.Fprintf(out, "📝 %s\n", res.HighlightedText)
		}

		if scanExplain > 0 {
			contributions, err := s.Explain(text, scanExplain)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n📊 Term contributions:\n")
			for _, c := range contributions {
				fmt.Fprintf(out, "  %-20s %+.4f\n", c.Word, c.Score)
			}
		}

		return nil
	},
}

func scanInput(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case scanEML != "":
		msg, err := email.NewParser().ParseFromFile(scanEML)
		if err != nil {
			return "", err
		}
		return msg.Text(), nil
	case scanFile != "" && scanFile != "-":
		data, err := os.ReadFile(scanFile)
		if err != nil {
			return "", errors.Wrap(err, "failed to read input file")
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "failed to read stdin")
		}
		return string(data), nil
	}
}

func init() {
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "Read the message text from a file")
	scanCmd.Flags().StringVar(&scanEML, "eml", "", "Parse a raw email file and scan its subject and body")
	scanCmd.Flags().IntVar(&scanExplain, "explain", 0, "Show the N terms contributing most toward spam")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the scan result as JSON")
}
