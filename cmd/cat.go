package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/ingest"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	var outputDir string
	c := &cobra.Command{
		Use:   "cat [source] [output.db] [item-path]",
		Short: "Print the content of one item, read lazily from the evidence source",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, dbPath, itemPath := args[0], args[1], args[2]

			src, err := ingest.LocateReport(source)
			if err != nil {
				return err
			}
			var archive *content.Archive
			if src.ArchivePath != "" {
				archive = content.NewArchive(src.ArchivePath)
			}
			resolver := content.NewResolver(osfs.New(src.Root), archive, nil)
			defer func() { _ = resolver.Close() }()

			store, err := loadStore(dbPath)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = filepath.Dir(dbPath)
			}
			store.SetResolver(resolver.ContentFunc(osfs.New(outputDir)))

			it, err := store.GetItem(itemPath)
			if err != nil {
				return fmt.Errorf("%s: %w", itemPath, err)
			}
			if it.Content == nil {
				return errors.New(itemPath + " has no content")
			}

			out := cmd.OutOrStdout()
			buf := make([]byte, 32*1024)
			var offset int64
			for {
				n, err := store.ReadContent(itemPath, buf, offset)
				if err != nil {
					return err
				}
				if n == 0 {
					return nil
				}
				if _, err := out.Write(buf[:n]); err != nil {
					return err
				}
				offset += int64(n)
			}
		},
	}
	c.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory holding preview documents (default: next to the database)")
	return c
}
