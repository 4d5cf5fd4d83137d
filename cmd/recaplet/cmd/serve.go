package cmd

import (
	"context"
	"fmt"

	"github.com/mfenderov/recaplet/internal/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for news retrieval.

The server communicates via stdio and provides two tools:
  - list_news: List recent summarized items, optionally by source
  - get_news: Get a single item by ID

Example:
  recaplet serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	store, err := newStore(context.Background(), &cfg, false)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
