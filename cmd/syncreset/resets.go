package main

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/syncreset/internal/resets"
	"github.com/MarcoPoloResearchLab/syncreset/internal/resetstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the pending reset, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeRuntime, err := openRuntime(cmd.Context(), configViper, nil)
			if err != nil {
				return err
			}
			defer closeRuntime()

			pending, err := rt.service.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if pending == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending reset")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), pending.String())
			return nil
		},
	}
}

func newTrackCommand(configViper *viper.Viper) *cobra.Command {
	var (
		mode         string
		action       string
		errorCode    int64
		errorMessage string
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Record a pending reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := buildTrackRequest(mode, action)
			if err != nil {
				return err
			}
			codeSet := cmd.Flags().Changed("error-code")
			messageSet := cmd.Flags().Changed("error-message")
			if messageSet && !codeSet {
				return fmt.Errorf("--error-message requires --error-code")
			}
			if codeSet {
				request.Error = &resetstore.Status{Code: resetstore.ErrorCode(errorCode), Message: errorMessage}
			}

			rt, closeRuntime, err := openRuntime(cmd.Context(), configViper, nil)
			if err != nil {
				return err
			}
			defer closeRuntime()

			tracked, err := rt.service.Track(cmd.Context(), request)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tracked.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Resync mode (manual, discard_local, recover, recover_or_discard)")
	cmd.Flags().StringVar(&action, "action", "", "Server-requested action (defaults to no_action)")
	cmd.Flags().Int64Var(&errorCode, "error-code", 0, "Server error code that triggered the reset")
	cmd.Flags().StringVar(&errorMessage, "error-message", "", "Server error message that triggered the reset")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func buildTrackRequest(rawMode, rawAction string) (resets.TrackRequest, error) {
	mode, err := resetstore.ParseResyncMode(rawMode)
	if err != nil {
		return resets.TrackRequest{}, fmt.Errorf("invalid --mode %q: %w", rawMode, err)
	}
	action, err := resetstore.ParseAction(rawAction)
	if err != nil {
		return resets.TrackRequest{}, fmt.Errorf("invalid --action %q: %w", rawAction, err)
	}
	return resets.TrackRequest{Mode: mode, Action: action}, nil
}

func newClearCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the pending reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeRuntime, err := openRuntime(cmd.Context(), configViper, nil)
			if err != nil {
				return err
			}
			defer closeRuntime()

			cleared, err := rt.service.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if cleared == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending reset")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cleared)
			return nil
		},
	}
}
