package main

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/syncreset/internal/resetstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDBCommand(configViper *viper.Viper) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Maintain the pending reset storage",
	}

	upgradeCmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Move a legacy pending reset into the current layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeRuntime, err := openRuntime(cmd.Context(), configViper, nil)
			if err != nil {
				return err
			}
			defer closeRuntime()

			moved, err := rt.service.UpgradeLegacy(cmd.Context())
			if err != nil {
				return err
			}
			if moved {
				fmt.Fprintln(cmd.OutOrStdout(), "legacy pending reset upgraded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to upgrade")
			return nil
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the stored layout is readable by this build",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeRuntime, err := openRuntime(cmd.Context(), configViper, nil)
			if err != nil {
				return err
			}
			defer closeRuntime()

			report, err := rt.service.Inspect(cmd.Context())
			printReport(cmd, report, err)
			return err
		},
	}

	dbCmd.AddCommand(upgradeCmd, verifyCmd)
	return dbCmd
}

func printReport(cmd *cobra.Command, report resetstore.SchemaReport, inspectErr error) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "current table: %t\n", report.CurrentTable)
	fmt.Fprintf(out, "legacy table: %t\n", report.LegacyTable)
	if report.SchemaVersion == 0 {
		fmt.Fprintln(out, "schema version: none")
	} else {
		fmt.Fprintf(out, "schema version: %d\n", report.SchemaVersion)
	}
	if inspectErr != nil {
		fmt.Fprintf(out, "pending: unreadable (%v)\n", inspectErr)
		return
	}
	if report.Pending == nil {
		fmt.Fprintln(out, "pending: none")
		return
	}
	fmt.Fprintf(out, "pending: %s\n", report.Pending)
}
