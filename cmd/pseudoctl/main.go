package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
)

func buildRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:          "pseudoctl",
		Short:        "Pseudonymize tabular datasets offline",
		SilenceUsage: true,
	}

	cmd.AddCommand(buildRunCmd(cfg))
	cmd.AddCommand(buildRecomputeCmd(cfg))
	cmd.AddCommand(buildCollisionCmd())
	cmd.AddCommand(buildTokenCmd(cfg))
	cmd.AddCommand(buildReidentifyCmd())

	return cmd
}

func main() {
	logger.Init()
	// stdout carries the payload table
	logger.Log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
