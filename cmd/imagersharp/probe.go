package main

import (
	"fmt"
	"os"

	"github.com/dunamismax/imagersharp/internal/pipeline"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "Print an image's format and dimensions without decoding it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := pipeline.Probe(data)
	if err != nil {
		return fmt.Errorf("probing %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:       %s\n", path)
	fmt.Fprintf(out, "Format:     %s\n", info.Format)
	fmt.Fprintf(out, "Dimensions: %d x %d\n", info.Width, info.Height)
	fmt.Fprintf(out, "Pixels:     %d\n", info.Pixels())
	fmt.Fprintf(out, "File size:  %d bytes (%.1f MB)\n", len(data), float64(len(data))/(1024*1024))
	return nil
}
