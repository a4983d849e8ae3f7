package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadbridge/internal/bridge"
)

var processFile string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single lead webhook event from a file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if processFile != "" {
			f, err := os.Open(processFile)
			if err != nil {
				return eris.Wrap(err, "open event file")
			}
			defer f.Close()
			in = f
		}

		var event bridge.WebhookEvent
		if err := json.NewDecoder(in).Decode(&event); err != nil {
			return eris.Wrap(err, "decode event")
		}

		processor, err := newProcessor(cfg)
		if err != nil {
			return err
		}

		result, err := processor.ProcessLead(cmd.Context(), event)
		if err != nil {
			return err
		}

		fmt.Printf("customer: %s\njob: %s\n", result.CustomerID, result.JobID)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processFile, "file", "f", "", "event JSON file (default stdin)")
	rootCmd.AddCommand(processCmd)
}
