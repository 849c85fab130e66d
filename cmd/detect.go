package cmd

import (
	"fmt"

	"github.com/agentic-research/evidencegraph/internal/ingest"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [path]",
		Short: "Report whether a path holds a supported extraction report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ingest.LocateReport(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if src.ArchivePath != "" {
				_, err = fmt.Fprintf(out, "%s: container %s (%d bytes)\n", src.Name, src.ArchivePath, src.Size)
			} else {
				_, err = fmt.Fprintf(out, "%s: report %s\n", src.Name, src.ReportPath)
			}
			return err
		},
	}
}
