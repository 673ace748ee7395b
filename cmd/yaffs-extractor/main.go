// Command yaffs-extractor reconstructs a directory tree of files,
// symlinks, hardlinks, and device nodes from a raw YAFFS2 image.
package main

import (
	"fmt"
	"os"

	"github.com/lambertdev/yaffs-extractor/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
