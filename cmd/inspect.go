package cmd

import (
	"fmt"
	"strings"

	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		showMeta    bool
		deletedOnly bool
		category    string
	)
	c := &cobra.Command{
		Use:   "inspect [output.db]",
		Short: "List the items stored in an evidence graph database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(args[0])
			if err != nil {
				return err
			}

			var items []*graph.Item
			switch {
			case deletedOnly || category != "":
				paths := store.Deleted()
				if category != "" {
					paths = store.ByCategory(category)
				}
				for _, p := range paths {
					it, err := store.GetItem(p)
					if err != nil {
						return err
					}
					if deletedOnly && !it.IsDeleted {
						continue
					}
					items = append(items, it)
				}
			default:
				items = store.Items()
			}

			out := cmd.OutOrStdout()
			for _, it := range items {
				kind := "file"
				if it.IsDir {
					kind = "dir"
				}
				flags := ""
				if it.IsDeleted {
					flags = " deleted"
				}
				if _, err := fmt.Fprintf(out, "%d\t%s\t%d\t%s%s\n", it.ID, kind, it.ContentSize(), it.Path, flags); err != nil {
					return err
				}
				if !showMeta {
					continue
				}
				for _, k := range it.Metadata.Names() {
					_, _ = fmt.Fprintf(out, "\t%s = %s\n", k, strings.Join(it.Metadata.Values(k), " | "))
				}
			}
			return nil
		},
	}
	c.Flags().BoolVarP(&showMeta, "metadata", "m", false, "Print item metadata")
	c.Flags().BoolVar(&deletedOnly, "deleted", false, "Only list deleted items")
	c.Flags().StringVar(&category, "category", "", "Only list items of this category")
	return c
}

// loadStore reads a database back into memory. Items are stored in ID
// order, which always puts a parent before its children.
func loadStore(dbPath string) (*graph.MemoryStore, error) {
	items, err := graph.LoadItems(dbPath)
	if err != nil {
		return nil, err
	}
	store := graph.NewMemoryStore()
	for _, it := range items {
		if err := store.Add(it); err != nil {
			return nil, fmt.Errorf("load %s: %w", dbPath, err)
		}
	}
	return store, nil
}
