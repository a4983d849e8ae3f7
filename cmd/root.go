package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadbridge/internal/bridge"
	"github.com/sells-group/leadbridge/internal/config"
	"github.com/sells-group/leadbridge/pkg/housecallpro"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadbridge",
	Short: "WhatConverts to HouseCall Pro lead bridge",
	Long:  "Receives WhatConverts lead webhooks, maps leads into HouseCall Pro customers and jobs, and reconciles sale and quote values back onto leads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newProcessor builds the webhook processor from config. Both API
// credentials must be configured before any downstream call is made.
func newProcessor(c *config.Config) (*bridge.Processor, error) {
	if c.WhatConverts.Token == "" || c.WhatConverts.Secret == "" {
		return nil, eris.New("whatconverts token and secret are not configured")
	}
	if c.HouseCallPro.APIKey == "" {
		return nil, eris.New("housecallpro api key is not configured")
	}

	leads := whatconverts.NewClient(
		c.WhatConverts.Token,
		c.WhatConverts.Secret,
		c.WhatConverts.BaseURL,
	)
	crm := housecallpro.NewClient(
		c.HouseCallPro.APIKey,
		housecallpro.WithBaseURL(c.HouseCallPro.BaseURL),
		housecallpro.WithRateLimit(c.HouseCallPro.RateLimit),
	)

	return bridge.New(leads, crm, c.Webhook.AllowedProfiles), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
