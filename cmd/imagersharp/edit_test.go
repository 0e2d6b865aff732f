package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dunamismax/imagersharp/internal/pipeline"
)

func TestParseCrop(t *testing.T) {
	r, err := parseCrop("10, 20.5,30,40")
	if err != nil {
		t.Fatalf("parseCrop: %v", err)
	}
	if r != (pipeline.Rect{X: 10, Y: 20.5, Width: 30, Height: 40}) {
		t.Fatalf("unexpected rect %+v", r)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,x"} {
		if _, err := parseCrop(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	cases := []struct {
		flag, path string
		want       pipeline.Format
	}{
		{"", "out.png", pipeline.FormatPNG},
		{"", "out.JPG", pipeline.FormatJPEG},
		{"", "out", pipeline.FormatJPEG},
		{"webp", "out.png", pipeline.FormatWebP},
	}
	for _, tc := range cases {
		got, err := outputFormat(tc.flag, tc.path)
		if err != nil {
			t.Fatalf("outputFormat(%q, %q): %v", tc.flag, tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("outputFormat(%q, %q) = %s, want %s", tc.flag, tc.path, got, tc.want)
		}
	}

	if _, err := outputFormat("", "out.gif"); !errors.Is(err, pipeline.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for .gif, got %v", err)
	}
}

func TestEditAndProbeCommands(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 30, 20))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	src.SetNRGBA(0, 0, color.NRGBA{A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode source: %v", err)
	}
	input := filepath.Join(dir, "in.png")
	if err := os.WriteFile(input, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	output := filepath.Join(dir, "out.png")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"edit", "-i", input, "-o", output, "--crop", "5,5,10,8"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("edit: %v", err)
	}

	stdout.Reset()
	rootCmd.SetArgs([]string{"probe", output})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(stdout.String(), "Dimensions: 10 x 8") {
		t.Fatalf("unexpected probe output:\n%s", stdout.String())
	}
}
