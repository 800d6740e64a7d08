package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/nexusgraph-backend/internal/client"
	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
)

func jobsCmd(api func() *client.API) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List ingestion jobs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := api()
			if len(args) == 1 {
				j, err := a.JobStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(jobLine(j))
				return nil
			}
			list, err := a.ListJobs(cmd.Context(), domain.JobStatus(status), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println(gray("no jobs"))
			}
			for _, j := range list {
				fmt.Println(jobLine(j))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only jobs in this status (pending, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")
	return cmd
}
