// sevenz-forensic builds and reads 7z archives without a system 7-Zip
// binary: LZMA2 solid-block compression, AES-256-CBC encryption, multi-
// volume output, a run checkpoint file, and a test mode that cross-checks
// against an independent 7z reader implementation.
package main

import (
	"os"

	"sevenz-forensic/internal/cli"
)

const version = "v0.1.0"

func main() {
	os.Exit(cli.Execute(version))
}
