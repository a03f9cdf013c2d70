package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sevenz-forensic/internal/archive"
)

func init() {
	testCmd.SilenceErrors = true
	testCmd.SilenceUsage = true
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&testPassword, "password", "p", "", "decryption password, if the archive is encrypted")
	testCmd.Flags().BoolVarP(&testPasswordStdin, "password-stdin", "P", false, "read the password from stdin")
}

var testCmd = &cobra.Command{
	Use:   "test <archive>",
	Short: "Verify an archive's integrity without extracting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTest,
}

var (
	testPassword      string
	testPasswordStdin bool
)

func runTest(cmd *cobra.Command, args []string) error {
	archivePath := args[0]

	password := testPassword
	if testPasswordStdin {
		var err error
		password, err = ReadPasswordFromStdin()
		if err != nil {
			return err
		}
	}

	err := archive.Test(&archive.TestRequest{ArchivePath: archivePath, Password: password})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: OK\n", archivePath)
	return nil
}
