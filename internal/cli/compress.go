package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sevenz-forensic/internal/archive"
)

func init() {
	compressCmd.SilenceErrors = true
	compressCmd.SilenceUsage = true
	rootCmd.AddCommand(compressCmd)

	compressCmd.Flags().IntVarP(&compLevel, "level", "l", -1, "compression level 0-9 (default: probe entropy and pick)")
	compressCmd.Flags().Int64Var(&compSplitSize, "split-size", 0, "split output into volumes of this many bytes (0 = never split)")
	compressCmd.Flags().Int64Var(&compChunkSize, "chunk-size", 0, "read ceiling per input file in bytes (0 = default)")
	compressCmd.Flags().StringVarP(&compPassword, "password", "p", "", "encryption password (use --encrypt instead to be prompted; with neither, no encryption)")
	compressCmd.Flags().BoolVarP(&compPasswordStdin, "password-stdin", "P", false, "read the password from stdin")
	compressCmd.Flags().BoolVar(&compEncrypt, "encrypt", false, "prompt for a password and encrypt the archive")
	compressCmd.Flags().BoolVar(&compResume, "resume", false, "load an existing checkpoint if one is present (compression still restarts from the first input)")
	compressCmd.Flags().BoolVarP(&compQuiet, "quiet", "q", false, "suppress progress output")
	compressCmd.Flags().BoolVarP(&compYes, "yes", "y", false, "overwrite an existing output file without prompting")
}

var compressCmd = &cobra.Command{
	Use:   "compress <archive> <input>...",
	Short: "Build a 7z archive from one or more files or directories",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCompress,
}

var (
	compLevel         int
	compSplitSize     int64
	compChunkSize     int64
	compPassword      string
	compPasswordStdin bool
	compEncrypt       bool
	compResume        bool
	compQuiet         bool
	compYes           bool
)

func runCompress(cmd *cobra.Command, args []string) error {
	outputPath := args[0]
	inputs := args[1:]

	if _, err := os.Stat(outputPath); err == nil && !compYes {
		fmt.Fprintf(os.Stderr, "%s already exists. Overwrite? [y/N]: ", outputPath)
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(response)) != "y" {
			return fmt.Errorf("cancelled")
		}
	}

	password := compPassword
	switch {
	case compPasswordStdin:
		var err error
		password, err = ReadPasswordFromStdin()
		if err != nil {
			return err
		}
	case compEncrypt && password == "":
		var err error
		password, err = ReadPasswordInteractive(true)
		if err != nil {
			return fmt.Errorf("password input: %w", err)
		}
	}

	reporter := NewReporter(compQuiet)
	globalReporter = reporter

	if !compQuiet {
		fmt.Fprintf(os.Stderr, "Compressing %d input(s) to %s\n", len(inputs), outputPath)
	}

	err := archive.Compress(&archive.CompressRequest{
		Inputs:     absPaths(inputs),
		OutputPath: outputPath,
		Level:      compLevel,
		SplitSize:  compSplitSize,
		ChunkSize:  compChunkSize,
		Password:   password,
		Resume:     compResume,
		Reporter:   reporter,
	})
	reporter.Finish()

	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}
	reporter.PrintSuccess("Compression completed: %s", outputPath)
	return nil
}

func absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			out[i] = p
			continue
		}
		out[i] = abs
	}
	return out
}
