package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadbridge/internal/bridge"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

var (
	reconcileProfile int64
	reconcileValue   float64
	reconcilePhone   string
	reconcileEmail   string
	reconcileField   string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Add a sale or quote amount to a matching WhatConverts lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconcilePhone == "" && reconcileEmail == "" {
			return eris.New("at least one of --phone or --email is required")
		}

		var field whatconverts.ValueField
		switch reconcileField {
		case "sales_value":
			field = whatconverts.SalesValue
		case "quote_value":
			field = whatconverts.QuoteValue
		default:
			return eris.Errorf("unknown field %q (want sales_value or quote_value)", reconcileField)
		}

		processor, err := newProcessor(cfg)
		if err != nil {
			return err
		}

		updated, err := processor.ReconcileValue(cmd.Context(), bridge.ValueEvent{
			ProfileID: reconcileProfile,
			Value:     reconcileValue,
			Phone:     reconcilePhone,
			Email:     reconcileEmail,
		}, field)
		if err != nil {
			return err
		}

		if !updated {
			fmt.Println("no matching lead")
			return nil
		}
		fmt.Println("lead updated")
		return nil
	},
}

func init() {
	reconcileCmd.Flags().Int64Var(&reconcileProfile, "profile", 0, "WhatConverts profile id")
	reconcileCmd.Flags().Float64Var(&reconcileValue, "value", 0, "amount to add")
	reconcileCmd.Flags().StringVar(&reconcilePhone, "phone", "", "contact phone")
	reconcileCmd.Flags().StringVar(&reconcileEmail, "email", "", "contact email")
	reconcileCmd.Flags().StringVar(&reconcileField, "field", "sales_value", "lead field to update (sales_value|quote_value)")
	_ = reconcileCmd.MarkFlagRequired("profile")
	_ = reconcileCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(reconcileCmd)
}
