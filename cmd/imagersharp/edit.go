package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dunamismax/imagersharp/internal/pipeline"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Crop, adjust and encode one image",
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringP("input", "i", "", "Source image (jpeg, png or webp)")
	editCmd.Flags().StringP("output", "o", "", "Output file")
	editCmd.Flags().String("crop", "", "Crop rectangle as x,y,width,height in source pixels")
	editCmd.Flags().String("format", "", "Output format (jpeg, png, webp); defaults to the output extension")
	editCmd.Flags().Int("quality", pipeline.DefaultQuality, "Encoder quality (1-100)")
	editCmd.Flags().Float64("brightness", 1, "Brightness multiplier (> 0)")
	editCmd.Flags().Float64("saturation", 1, "Saturation multiplier (>= 0, 0 is grayscale)")
	editCmd.Flags().Float64("contrast", 1, "Contrast factor around mid-gray (> 0)")
	editCmd.Flags().Float64("blur", 0, "Gaussian blur sigma in pixels (>= 0)")
	editCmd.Flags().Bool("auto-orient", false, "Apply EXIF orientation before cropping")
	editCmd.Flags().Int64("max-pixels", 0, "Reject sources with more pixels than this (0 disables)")
	editCmd.Flags().Bool("timings", false, "Print per-stage timings")
	editCmd.MarkFlagRequired("input")
	editCmd.MarkFlagRequired("output")
	editCmd.MarkFlagRequired("crop")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	cropStr, _ := cmd.Flags().GetString("crop")
	formatStr, _ := cmd.Flags().GetString("format")
	quality, _ := cmd.Flags().GetInt("quality")
	brightness, _ := cmd.Flags().GetFloat64("brightness")
	saturation, _ := cmd.Flags().GetFloat64("saturation")
	contrast, _ := cmd.Flags().GetFloat64("contrast")
	blurRadius, _ := cmd.Flags().GetFloat64("blur")
	autoOrient, _ := cmd.Flags().GetBool("auto-orient")
	maxPixels, _ := cmd.Flags().GetInt64("max-pixels")
	showTimings, _ := cmd.Flags().GetBool("timings")

	crop, err := parseCrop(cropStr)
	if err != nil {
		return err
	}
	format, err := outputFormat(formatStr, outputPath)
	if err != nil {
		return err
	}

	inputData, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if _, err := (pipeline.Limits{MaxPixels: maxPixels}).Check(inputData); err != nil {
		return err
	}

	params := pipeline.Params{
		Crop: crop,
		Adjustments: pipeline.Adjustments{
			Brightness: brightness,
			Saturation: saturation,
			Contrast:   contrast,
			BlurRadius: blurRadius,
		},
		Output:     pipeline.OutputSpec{Format: format, Quality: quality},
		AutoOrient: autoOrient,
	}

	result, err := pipeline.Run(cmd.Context(), inputData, params)
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}

	if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s (%s, %d x %d, %d bytes) from %d x %d source\n",
		outputPath, result.Format, result.Width, result.Height, len(result.Data),
		result.SourceWidth, result.SourceHeight)
	if showTimings {
		for _, t := range result.Timings {
			fmt.Fprintf(out, "  %-9s %s\n", t.Stage, t.Elapsed)
		}
	}
	return nil
}

// parseCrop reads "x,y,width,height". Values may be fractional; the
// pipeline rounds them.
func parseCrop(s string) (pipeline.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return pipeline.Rect{}, fmt.Errorf("crop must be x,y,width,height, got %q", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return pipeline.Rect{}, fmt.Errorf("crop value %q: %w", p, err)
		}
		v[i] = f
	}
	return pipeline.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func outputFormat(flag, outputPath string) (pipeline.Format, error) {
	if flag != "" {
		return pipeline.ParseFormat(flag)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(outputPath)), ".")
	if ext == "" {
		return pipeline.DefaultFormat, nil
	}
	return pipeline.ParseFormat(ext)
}
