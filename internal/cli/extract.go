package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sevenz-forensic/internal/archive"
	"sevenz-forensic/internal/errz"
)

func isWrongPasswordErr(err error) bool { return errz.IsWrongPassword(err) }

func init() {
	extractCmd.SilenceErrors = true
	extractCmd.SilenceUsage = true
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extPassword, "password", "p", "", "decryption password")
	extractCmd.Flags().BoolVarP(&extPasswordStdin, "password-stdin", "P", false, "read the password from stdin")
	extractCmd.Flags().BoolVarP(&extQuiet, "quiet", "q", false, "suppress progress output")
}

var extractCmd = &cobra.Command{
	Use:   "extract <archive> <out_dir>",
	Short: "Extract a 7z archive into a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

var (
	extPassword      string
	extPasswordStdin bool
	extQuiet         bool
)

func runExtract(cmd *cobra.Command, args []string) error {
	archivePath, outDir := args[0], args[1]

	password := extPassword
	if extPasswordStdin {
		var err error
		password, err = ReadPasswordFromStdin()
		if err != nil {
			return err
		}
	}

	reporter := NewReporter(extQuiet)
	globalReporter = reporter

	if !extQuiet {
		fmt.Fprintf(os.Stderr, "Extracting %s to %s\n", archivePath, outDir)
	}

	err := archive.Extract(&archive.ExtractRequest{
		ArchivePath: archivePath,
		OutputDir:   outDir,
		Password:    password,
		Reporter:    reporter,
	})
	reporter.Finish()

	if err != nil {
		if password == "" && isWrongPasswordErr(err) {
			var promptErr error
			password, promptErr = ReadPasswordInteractive(false)
			if promptErr == nil {
				err = archive.Extract(&archive.ExtractRequest{
					ArchivePath: archivePath,
					OutputDir:   outDir,
					Password:    password,
					Reporter:    reporter,
				})
			}
		}
		if err != nil {
			reporter.PrintError("%v", err)
			return err
		}
	}

	reporter.PrintSuccess("Extraction completed: %s", outDir)
	return nil
}
