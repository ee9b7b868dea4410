package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	sendTo     string
	sendDomain string
	sendLocale string
	sendVars   string
)

var sendCmd = &cobra.Command{
	Use:   "send <template>",
	Short: "Send a test message from a registered template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendTo == "" {
			return fmt.Errorf("--to is required")
		}

		var vars map[string]interface{}
		if sendVars != "" {
			if err := json.Unmarshal([]byte(sendVars), &vars); err != nil {
				return fmt.Errorf("--vars must be a JSON object: %w", err)
			}
		}

		var resp struct {
			Sent int `json:"sent"`
		}
		err := postJSON("/v1/tx/message", map[string]interface{}{
			"name":   args[0],
			"domain": sendDomain,
			"locale": sendLocale,
			"to":     sendTo,
			"vars":   vars,
		}, &resp)
		if err != nil {
			return err
		}

		log.Info("message sent", "template", args[0], "recipients", resp.Sent)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "comma-separated recipient addresses")
	sendCmd.Flags().StringVarP(&sendDomain, "domain", "d", "", "template domain (default: account default)")
	sendCmd.Flags().StringVarP(&sendLocale, "locale", "l", "", "template locale")
	sendCmd.Flags().StringVar(&sendVars, "vars", "", "template variables as a JSON object")
}
