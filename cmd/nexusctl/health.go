package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yungbote/nexusgraph-backend/internal/client"
)

func healthCmd(api func() *client.API) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server and dependency health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := api().Health(cmd.Context())
			if err != nil {
				return err
			}
			status := green(h.Status)
			if h.Status != "healthy" {
				status = yellow(h.Status)
			}
			fmt.Printf("%s  version %s  %s\n", status, h.Version, gray(h.Timestamp.Format("2006-01-02 15:04:05")))

			names := make([]string, 0, len(h.Services))
			for name := range h.Services {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-14s %s\n", name, h.Services[name])
			}
			return nil
		},
	}
}
