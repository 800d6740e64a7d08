package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/nexusgraph-backend/internal/client"
	"github.com/yungbote/nexusgraph-backend/internal/platform/shutdown"
)

func main() {
	var (
		server  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "nexusctl",
		Short:         "Talk to a Nexus-Graph server: chat, upload documents, follow ingestion jobs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&server, "server", envOr("NEXUS_SERVER", "http://localhost:8000"), "Server base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")

	api := func() *client.API { return client.NewAPI(server) }
	root.AddCommand(
		chatCmd(api),
		uploadCmd(api),
		jobsCmd(api),
		healthCmd(api),
	)

	ctx, stop := shutdown.NotifyContext(context.Background())
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		c, cancel := context.WithTimeout(ctx, timeout)
		cobra.OnFinalize(cancel)
		cmd.SetContext(c)
	}

	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, red("error: "+err.Error()))
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
