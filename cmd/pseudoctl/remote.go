package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/pseudonym/pkg/client"
	"github.com/synaptica-ai/pseudonym/pkg/common/auth"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
)

func buildTokenCmd(cfg *config.Config) *cobra.Command {
	var subject string
	var scopes []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token signed with $AUTH_TOKEN_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := auth.NewTokenManager(cfg.AuthTokenSecret, cfg.AuthIssuer, cfg.AuthAudience, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.IssueToken(subject, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopePseudonymize}, "granted scopes: pseudonymize, reidentify, pools")
	cmd.Flags().DurationVar(&ttl, "ttl", cfg.AuthTokenTTL, "token lifetime")

	return cmd
}

func buildReidentifyCmd() *cobra.Command {
	var server, token, runID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reidentify LABEL",
		Short: "Look up the keyfile entry of a counter or random label on a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(server, timeout, client.WithToken(token))
			resp, err := c.Reidentify(cmd.Context(), runID, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8083", "deid-service base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token with the reidentify scope")
	cmd.Flags().StringVar(&runID, "run", "", "run id that issued the label; required when several runs issued it")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	return cmd
}
