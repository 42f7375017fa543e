package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

func buildRunCmd(cfg *config.Config) *cobra.Command {
	var planFile, inputFile, keyFile, payloadOut, keyfileOut string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan over a JSON dataset and write the payload table and keyfile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planFile == "" {
				planFile = cfg.PlanFile
			}
			if planFile == "" {
				return fmt.Errorf("--plan is required")
			}
			plan, err := pseudonym.LoadPlan(planFile)
			if err != nil {
				return err
			}
			applyDefaults(&plan, cfg)

			dataset, err := readDataset(inputFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var key *pseudonym.Secret
			if plan.Strategy == pseudonym.StrategyHash {
				if keyFile == "" {
					keyFile = cfg.KeyFile
				}
				key, err = pseudonym.LoadSecret(keyFile)
				if err != nil {
					return err
				}
				defer key.Destroy()
			}

			result, err := plan.Run(dataset, key)
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				cmd.PrintErrln("warning:", w)
			}

			if err := writeTable(payloadOut, result.Payload, cmd.OutOrStdout()); err != nil {
				return err
			}
			if keyfileOut != "" {
				if err := writeTable(keyfileOut, result.Keyfile, nil); err != nil {
					return err
				}
			}

			logger.WithFields(map[string]interface{}{
				"strategy": result.Strategy,
				"records":  len(result.Labels),
			}).Info("dataset pseudonymized")
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "YAML plan file (default: $PSEUDONYM_PLAN_FILE)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "dataset JSON file (default: stdin)")
	cmd.Flags().StringVarP(&keyFile, "key-file", "k", "", "secret key file for the hash strategy (default: $PSEUDONYM_KEY_FILE)")
	cmd.Flags().StringVar(&payloadOut, "payload-out", "", "payload table output file (default: stdout)")
	cmd.Flags().StringVar(&keyfileOut, "keyfile-out", "", "keyfile output file; omitted when empty")

	return cmd
}

func applyDefaults(plan *pseudonym.Plan, cfg *config.Config) {
	if plan.Prefix == "" {
		plan.Prefix = cfg.Prefix
	}
	if plan.PoolSize == 0 {
		plan.PoolSize = cfg.PoolSize
	}
	if plan.PadWidth == 0 {
		plan.PadWidth = cfg.PadWidth
	}
	if plan.Algorithm == "" {
		plan.Algorithm = cfg.HashAlgorithm
	}
	if plan.TruncateTo == nil {
		plan.TruncateTo = pseudonym.Truncate(cfg.TruncateTo)
	}
	if plan.LabelColumn == "" {
		plan.LabelColumn = cfg.LabelColumn
	}
}

func readDataset(path string, stdin io.Reader) (pseudonym.Dataset, error) {
	var dataset pseudonym.Dataset
	r := stdin
	if path != "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return dataset, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&dataset); err != nil {
		return dataset, fmt.Errorf("decode dataset: %w", err)
	}
	return dataset, nil
}

// writeTable writes to path, or to fallback when path is empty.
func writeTable(path string, table pseudonym.Table, fallback io.Writer) error {
	w := fallback
	if path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}
