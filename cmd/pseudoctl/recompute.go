package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

func buildRecomputeCmd(cfg *config.Config) *cobra.Command {
	var keyFile, algorithm, separator string
	var truncate int

	cmd := &cobra.Command{
		Use:   "recompute FIELD...",
		Short: "Recompute the keyed-hash label for one set of identifying fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" {
				keyFile = cfg.KeyFile
			}
			if algorithm == "" {
				algorithm = cfg.HashAlgorithm
			}
			algo, err := pseudonym.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			key, err := pseudonym.LoadSecret(keyFile)
			if err != nil {
				return err
			}
			defer key.Destroy()

			strategy, err := pseudonym.NewHashStrategy(key,
				pseudonym.WithAlgorithm(algo),
				pseudonym.WithTruncation(truncate),
				pseudonym.WithSeparator(separator),
			)
			if err != nil {
				return err
			}
			label, err := strategy.Label(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFile, "key-file", "k", "", "secret key file (default: $PSEUDONYM_KEY_FILE)")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "hmac-sha256 or blake2b-256 (default: $PSEUDONYM_HASH_ALGORITHM)")
	cmd.Flags().IntVarP(&truncate, "truncate", "t", cfg.TruncateTo, "keep the first N hex characters; 0 keeps the full digest")
	cmd.Flags().StringVar(&separator, "separator", "", "canonical field separator the run used (default: unit separator)")

	return cmd
}

func buildCollisionCmd() *cobra.Command {
	var maxProbability float64

	cmd := &cobra.Command{
		Use:   "collision RECORDS [HEX_CHARS]",
		Short: "Report the birthday-bound collision probability for a truncation length",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid record count %q", args[0])
			}
			safe := pseudonym.MinSafeTruncation(n, maxProbability)
			fmt.Fprintf(cmd.OutOrStdout(), "records=%d safe_truncation=%d max_probability=%g\n", n, safe, maxProbability)
			if len(args) == 2 {
				hexChars, err := strconv.Atoi(args[1])
				if err != nil || hexChars < 1 {
					return fmt.Errorf("invalid truncation %q", args[1])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hex_chars=%d probability=%g\n", hexChars, pseudonym.CollisionProbability(n, hexChars))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxProbability, "max-probability", pseudonym.DefaultMaxCollisionProbability, "acceptable collision probability")

	return cmd
}
