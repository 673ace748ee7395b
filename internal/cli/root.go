// Package cli wires the command-line surface from spec.md §6 onto the
// geometry oracle, reconstructor, and materializer, following
// dsmmcken-dh-cli's cobra-based internal/cmd layout.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/geometry"
	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/materialize"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// NewRootCmd builds the extractor's single root command.
func NewRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "yaffs-extractor",
		Short:         "Reconstruct a directory tree from a raw YAFFS2 image",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.file, "file", "f", "", "YAFFS input file (required)")
	fs.StringVarP(&f.dir, "dir", "d", "", "extract YAFFS files to this directory (required unless --ls)")
	fs.IntVarP(&f.pageSize, "page-size", "p", 0, "override page size")
	fs.IntVarP(&f.spareSize, "spare-size", "s", 0, "override spare size")
	fs.IntVarP(&f.blockSize, "block-size", "B", 0, "pages per erase-block, for checkpoint-block skip")
	fs.StringVarP(&f.endianess, "endianess", "e", "", "byte order: big|little")
	fs.BoolVarP(&f.noECC, "no-ecc", "n", false, "disable the ECC spare-area layout")
	fs.BoolVarP(&f.auto, "auto", "a", false, "auto-detect page size, spare size, ECC layout, and endianness")
	fs.BoolVarP(&f.bruteForce, "brute-force", "b", false, "exhaustively search geometry combinations on failure")
	fs.BoolVarP(&f.ownership, "ownership", "o", false, "preserve original uid/gid of extracted files")
	fs.BoolVarP(&f.ls, "ls", "l", false, "list filesystem contents only, without extracting")
	fs.BoolVarP(&f.debug, "debug", "D", false, "enable verbose debug logging")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	logging.SetDebug(f.debug)

	if f.file == "" {
		return xerrors.Errorf("%w: --file is required", yerrors.ErrFatal)
	}
	if f.dir == "" && !f.ls {
		return xerrors.Errorf("%w: --dir is required unless --ls is given", yerrors.ErrFatal)
	}

	image, err := os.ReadFile(f.file)
	if err != nil {
		return xerrors.Errorf("%w: reading image %q: %v", yerrors.ErrFatal, f.file, err)
	}

	req := geometry.Request{
		Auto:          f.auto,
		BruteForce:    f.bruteForce,
		UserPageSize:  f.pageSize,
		UserSpareSize: f.spareSize,
		BlockSize:     f.blockSize,
	}
	if endian, set := f.endian(); set {
		req.UserEndian = endian
	}
	if f.noECC {
		noECC := false
		req.UserECCLayout = &noECC
	}

	res, err := geometry.Resolve(image, req)
	if err != nil {
		return err
	}

	logging.Log.Infof("Found %d file objects with geometry: page=%d spare=%d ecclayout=%v",
		len(res.Objects), res.Geometry.PageSize, res.Geometry.SpareSize, res.Geometry.ECCLayout)
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d file objects with the following YAFFS settings:\n", len(res.Objects))
	fmt.Fprintf(cmd.OutOrStdout(), "Page size: %d\nSpare size: %d\nECC layout: %v\n\n",
		res.Geometry.PageSize, res.Geometry.SpareSize, res.Geometry.ECCLayout)

	if f.ls {
		printListing(cmd, res.Objects)
	}

	if f.dir != "" {
		opts := materialize.Options{
			PreserveMode:  true,
			PreserveOwner: f.ownership,
		}
		result, err := materialize.Materialize(res.Objects, image, res.Geometry, f.dir, opts)
		if err != nil {
			return err
		}
		logging.Log.Infof("Created %d directories, %d files, and %d links.", result.Directories, result.Files, result.Links)
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d directories, %d files, and %d links.\n",
			result.Directories, result.Files, result.Links)
	}

	return nil
}
