package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	milterNetwork string
	milterAddress string
	milterDebug   bool
)

var milterCmd = &cobra.Command{
	Use:   "milter",
	Short: "Start milter server for Postfix/Sendmail integration",
	Long: `Start the spamscan milter server to classify mail inside Postfix or
Sendmail.

Every message is scanned as it is received. Results are added as
X-Spamscan-* headers, and spam above milter.reject_confidence or
milter.quarantine_confidence is rejected or quarantined.

Example usage:
  spamscan milter
  spamscan milter --config /etc/spamscan/config.yaml
  spamscan milter --network tcp --address 127.0.0.1:7357
  spamscan milter --network unix --address /var/run/spamscan.sock

For Postfix integration, add to main.cf:
  smtpd_milters = inet:127.0.0.1:7357
  non_smtpd_milters = inet:127.0.0.1:7357
  milter_default_action = accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("network") {
			cfg.Milter.Network = milterNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Milter.Address = milterAddress
		}
		if milterDebug {
			cfg.Logging.Level = "debug"
			log.SetLevel(log.DebugLevel)
		}

		// Running this command implies the milter is wanted
		cfg.Milter.Enabled = true
		if err := cfg.Validate(); err != nil {
			return err
		}

		return runServices(cmd.Context(), cfg, false)
	},
}

func init() {
	milterCmd.Flags().StringVar(&milterNetwork, "network", "", "Network type: tcp or unix (overrides config)")
	milterCmd.Flags().StringVar(&milterAddress, "address", "", "Listen address (overrides config)")
	milterCmd.Flags().BoolVar(&milterDebug, "debug", false, "Enable debug logging")
}
