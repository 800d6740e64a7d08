package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/nexusgraph-backend/internal/client"
	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
)

func uploadCmd(api func() *client.API) *cobra.Command {
	var (
		watch bool
		push  bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a := api()
			res, err := a.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s\n", cyan(res.JobID), res.Status, res.Message)
			if !watch {
				return nil
			}

			w := a.WatchJob(ctx, res.JobID, client.WatchOptions{
				Push: push,
				OnUpdate: func(j domain.IngestionJob) {
					fmt.Printf("\r%s %5.1f%%  %d/%d chunks  %-10s", progressBar(j.Progress, 30), j.Progress*100, j.ChunksProcessed, j.TotalChunks, j.Status)
				},
			})
			defer w.Stop()
			final, err := w.Wait()
			fmt.Println()
			if err != nil {
				return err
			}
			if final.Status == domain.JobFailed {
				return fmt.Errorf("ingestion failed: %s", final.Error)
			}
			fmt.Println(green("ingested " + final.Filename))
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the job until it finishes")
	cmd.Flags().BoolVar(&push, "push", false, "Follow via the job event stream instead of polling")
	return cmd
}
