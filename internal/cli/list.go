package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sevenz-forensic/internal/archive"
)

func init() {
	listCmd.SilenceErrors = true
	listCmd.SilenceUsage = true
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List the files in an archive without decoding any of them",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	entries, err := archive.List(&archive.ListRequest{ArchivePath: args[0]})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIZE\tMODIFIED\tNAME")
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.Size, e.ModTime, name)
	}
	return w.Flush()
}
