package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/keywordsearch/api"
	"github.com/meghashyamc/keywordsearch/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywordsearch",
		Short: "Build throwaway full-text indices from document batches and search them",
		Long: `keywordsearch serves an HTTP API that indexes a batch of text documents into a
brand-new index per request, answers keyword searches against any index by name
and serves a tar.gz snapshot of each index for download.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.ApplyFlags(cmd.Flags())

			return api.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("socket-addr", "", "Socket address to listen on, for example 0.0.0.0:9069")
	cmd.Flags().String("port", config.DefaultPort, "Port to listen on all interfaces")
	cmd.Flags().String("download-url-prefix", "", "Download URL prefix, format http(s)://{IPv4 address or domain}:{port}")
	cmd.Flags().String("storage-root", config.DefaultStorageRoot, "Directory holding the indices and their archives")
	cmd.MarkFlagsMutuallyExclusive("socket-addr", "port")

	return cmd
}

func main() {
	godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
