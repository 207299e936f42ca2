package main

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/syncreset/internal/auth"
	"github.com/MarcoPoloResearchLab/syncreset/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTokenCommand(configViper *viper.Viper) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage operator tokens for the admin API",
	}

	var subject string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an operator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configViper)
			if err != nil {
				return err
			}
			if err := appConfig.RequireSigningSecret(); err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(tokenConfig(appConfig))
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueOperatorToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %ds\n", expiresIn)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&subject, "subject", "", "Operator identity carried in the token")
	_ = issueCmd.MarkFlagRequired("subject")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
