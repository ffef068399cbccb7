package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"labelflow/internal/preflight"
	"labelflow/internal/store"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment labelflow runs in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			st, openErr := store.Open(cfg)
			if openErr == nil {
				defer st.Close()
			} else {
				st = nil
			}

			for _, line := range renderSectionHeader("labelflow doctor", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			if openErr != nil {
				fmt.Fprintln(out, renderStatusLine("Open database", statusError, openErr.Error(), colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg, st)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if openErr != nil || preflight.Failed(results) {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}
