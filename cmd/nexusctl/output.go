package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func stepLine(s chat.StepEvent) string {
	var status string
	switch s.Status {
	case chat.StatusCompleted:
		status = green("done")
	case chat.StatusFailed:
		status = red("failed")
	case chat.StatusRunning:
		status = yellow("running")
	default:
		status = gray("pending")
	}
	line := fmt.Sprintf("  %-16s %s", s.Agent, status)
	switch {
	case s.Status.Terminal() && s.OutputSummary != "":
		line += gray("  " + s.OutputSummary)
	case s.Status == chat.StatusRunning && s.Thinking != "":
		line += gray("  " + s.Thinking)
	}
	return line
}

func jobLine(j domain.IngestionJob) string {
	status := string(j.Status)
	switch j.Status {
	case domain.JobCompleted:
		status = green(status)
	case domain.JobFailed:
		status = red(status)
	case domain.JobProcessing:
		status = yellow(status)
	}
	line := fmt.Sprintf("%s  %-10s %5.1f%%  %d/%d  %s", j.JobID, status, j.Progress*100, j.ChunksProcessed, j.TotalChunks, j.Filename)
	if j.Error != "" {
		line += "  " + red(j.Error)
	}
	return line
}

func progressBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	n := int(p * float64(width))
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", width-n) + "]"
}
