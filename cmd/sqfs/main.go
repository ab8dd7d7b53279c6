// Command sqfs extracts a SquashFS v4 image onto the host filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/NoNoNGU/squashfs"
)

type options struct {
	Out    string `short:"o" long:"out" description:"output directory" default:"squashfs_out"`
	NoMeta bool   `long:"no-meta" description:"skip chmod/chown/xattr application"`

	Positional struct {
		Image string `positional-arg-name:"image" description:"path to the SquashFS image"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sqfs: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.ParseArgs(&opts, os.Args[1:]); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	sb, err := squashfs.Open(opts.Positional.Image)
	if err != nil {
		return fmt.Errorf("opening %s: %w", opts.Positional.Image, err)
	}
	defer sb.Close()

	var extOpts []squashfs.ExtractorOption
	if opts.NoMeta {
		extOpts = append(extOpts, squashfs.WithoutMetadata())
	}

	ext := squashfs.NewExtractor(sb, squashfs.NewOSSink(opts.Out), extOpts...)
	if err := ext.Run(); err != nil {
		return fmt.Errorf("extracting: %w", err)
	}

	printSummary(opts.Out, sb, ext.Stats)
	return nil
}

func printSummary(outDir string, sb *squashfs.Superblock, st *squashfs.ExtractStats) {
	fmt.Println()
	fmt.Println("===== SquashFS Extract Summary =====")
	fmt.Printf("- Output dir            : %s\n", outDir)
	fmt.Printf("- Version               : %d.%d\n", sb.VMajor, sb.VMinor)
	fmt.Printf("- Block size            : %d bytes\n", sb.BlockSize)
	fmt.Printf("- Compression           : %d (%s)\n", sb.Comp, sb.Comp)
	fmt.Printf("- Flags                 : %s\n", flagSummary(sb.Flags))
	fmt.Printf("- Inodes (superblock)   : %d\n", sb.InodeCnt)
	fmt.Printf("- Fragment entries (SB) : %d\n", sb.FragCount)
	fmt.Printf("- Entries extracted     : %d\n", st.TotalEntries())
	fmt.Printf("  . Directories         : %d\n", st.Dirs)
	fmt.Printf("  . Files               : %d\n", st.Files)
	fmt.Printf("  . Symlinks            : %d\n", st.Symlinks)
	fmt.Printf("  . Other               : %d\n", st.Other)
	fmt.Printf("- Total bytes written   : %d (%s)\n", st.TotalBytes, humanBytes(st.TotalBytes))
	fmt.Printf("- Avg non-empty file    : %.1f bytes (%s)\n", st.AverageNonEmptyFileSize(), humanBytes(uint64(st.AverageNonEmptyFileSize())))
	fmt.Printf("- Unique tail fragments : %d\n", len(st.FragmentsUsed))
	fmt.Printf("- Max directory depth   : %d\n", st.MaxDepth)
	fmt.Println("====================================")
}

// flagSummary renders sb.Flags for the summary block, falling back to a
// placeholder when the image sets none of them.
func flagSummary(f squashfs.SquashFlags) string {
	if s := f.String(); s != "" {
		return s
	}
	return "(none)"
}

// humanBytes formats n the way the original extractor's human() helper
// did: one decimal place, stepping B -> KiB -> ... -> TiB.
func humanBytes(n uint64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	f := float64(n)
	for _, u := range units[:len(units)-1] {
		if f < 1024 {
			return fmt.Sprintf("%.1f %s", f, u)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.1f %s", f, units[len(units)-1])
}
