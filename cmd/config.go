package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate, validate and inspect spamscan configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a configuration file holding every option at its default value`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "config.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}
		}

		if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Configuration file generated: %s\n", configPath)
		fmt.Fprintf(out, "🚀 Use 'spamscan serve --config %s' to use the configuration\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and logical errors`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := args[0]

		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("❌ Configuration validation failed: %v", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Configuration is valid: %s\n", configPath)

		if warnings := configWarnings(loaded); len(warnings) > 0 {
			fmt.Fprintf(out, "\n⚠️  Warnings:\n")
			for _, warning := range warnings {
				fmt.Fprintf(out, "  - %s\n", warning)
			}
		}

		fmt.Fprintf(out, "\n")
		printConfigSummary(out, loaded)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: the given file, --config, or the defaults`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		shown := cfg
		switch {
		case len(args) > 0:
			loaded, err := config.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}
			shown = loaded
			fmt.Fprintf(out, "Configuration: %s\n\n", args[0])
		case configFile != "":
			fmt.Fprintf(out, "Configuration: %s\n\n", configFile)
		default:
			fmt.Fprintf(out, "Default Configuration:\n\n")
		}

		printConfigSummary(out, shown)
		return nil
	},
}

func printConfigSummary(out io.Writer, c *config.Config) {
	fmt.Fprintf(out, "🧠 Model:\n")
	fmt.Fprintf(out, "  Source: %s\n", c.Model.Source)
	fmt.Fprintf(out, "  Model path: %s\n", c.Model.Path)
	fmt.Fprintf(out, "  Words path: %s\n", c.Model.WordsPath)
	fmt.Fprintf(out, "  Watch files: %v\n", c.Model.Watch)

	fmt.Fprintf(out, "\n📚 Training:\n")
	fmt.Fprintf(out, "  Data: %s\n", c.Training.DataPath)
	fmt.Fprintf(out, "  Feedback: %s\n", c.Training.FeedbackPath)
	fmt.Fprintf(out, "  Alpha: %g\n", c.Training.Alpha)

	fmt.Fprintf(out, "\n🌐 HTTP Server:\n")
	fmt.Fprintf(out, "  Address: %s\n", c.Server.Address)
	fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(c.Server.AllowedOrigins, ", "))
	fmt.Fprintf(out, "  Max body: %d bytes\n", c.Server.MaxBodyBytes)

	fmt.Fprintf(out, "\n🖍️  Highlighting:\n")
	fmt.Fprintf(out, "  Tags: %s ... %s\n", c.Highlight.OpenTag, c.Highlight.CloseTag)
	fmt.Fprintf(out, "  Max words: %d\n", c.Highlight.MaxWords)
	fmt.Fprintf(out, "  Seed words: %d\n", len(c.Highlight.SeedWords))

	fmt.Fprintf(out, "\n📬 Milter:\n")
	fmt.Fprintf(out, "  Enabled: %v\n", c.Milter.Enabled)
	fmt.Fprintf(out, "  Listen: %s %s\n", c.Milter.Network, c.Milter.Address)
	fmt.Fprintf(out, "  Reject confidence: %g\n", c.Milter.RejectConfidence)
	fmt.Fprintf(out, "  Quarantine confidence: %g\n", c.Milter.QuarantineConfidence)

	if c.Model.Source == config.SourceRedis {
		fmt.Fprintf(out, "\n📡 Redis:\n")
		fmt.Fprintf(out, "  URL: %s\n", c.Redis.URL)
		fmt.Fprintf(out, "  Key prefix: %s\n", c.Redis.KeyPrefix)
		fmt.Fprintf(out, "  Channel: %s\n", c.Redis.Channel)
	}

	fmt.Fprintf(out, "\n💬 Feedback DB: %s\n", valueOr(c.Feedback.DBPath, "disabled"))
	fmt.Fprintf(out, "📜 Logging: %s (%s)\n", c.Logging.Level, c.Logging.Format)
}

// configWarnings reports settings that are valid but probably unintended
func configWarnings(c *config.Config) []string {
	var warnings []string

	if c.Model.Source == config.SourceFile && c.Model.WordsPath == "" {
		warnings = append(warnings, "No words_path set - highlighting will use the seed list")
	}
	if c.Highlight.OpenTag == "" && c.Highlight.CloseTag == "" {
		warnings = append(warnings, "Highlight tags are empty - highlighted text will equal the input")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			warnings = append(warnings, "CORS allows any origin")
			break
		}
	}
	if c.Milter.Enabled && c.Milter.RejectConfidence > 0 && c.Milter.RejectConfidence < 0.6 {
		warnings = append(warnings, "Low reject_confidence might reject legitimate mail")
	}
	if c.Milter.Enabled && !c.Milter.AddSpamHeaders && c.Milter.RejectConfidence == 0 && c.Milter.QuarantineConfidence == 0 {
		warnings = append(warnings, "Milter takes no action - enable headers, reject or quarantine")
	}

	return warnings
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configGenCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
