package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lambertdev/yaffs-extractor/internal/reconstruct"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
)

// printListing renders one line per surviving object that has a header
// (header-less well-known objects are omitted) to stdout,
// without touching the filesystem (spec.md §4.L, grounded on the
// original extractor's ls()/_print_entry()).
func printListing(cmd *cobra.Command, objs []*reconstruct.Object) {
	byID := make(map[uint32]*reconstruct.Object, len(objs))
	for _, obj := range objs {
		byID[obj.ObjID] = obj
	}

	sorted := append([]*reconstruct.Object(nil), objs...)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Join(sorted[i].Path...) < filepath.Join(sorted[j].Path...)
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tMODE\tUID\tGID\tSIZE\tPATH")
	for _, obj := range sorted {
		if obj.Header == nil {
			continue
		}
		path := "/" + filepath.Join(obj.Path...)
		extra := ""
		switch obj.Header.Type {
		case yaffsfmt.ObjectTypeSymlink:
			extra = fmt.Sprintf(" -> %s", obj.Header.Alias)
		case yaffsfmt.ObjectTypeHardlink:
			if target, ok := byID[obj.Header.EquivID]; ok {
				extra = fmt.Sprintf(" -> /%s", filepath.Join(target.Path...))
			}
		}
		fmt.Fprintf(w, "%s\t%o\t%d\t%d\t%d\t%s%s\n",
			obj.Header.Type, obj.Header.Mode&0o7777, obj.Header.UID, obj.Header.GID,
			obj.Header.FileSize(), path, extra)
	}
	w.Flush()
}
