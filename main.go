package main

import (
	"os"

	"github.com/ocrwatch/frigate-ocr/cmd"
	"github.com/ocrwatch/frigate-ocr/internal/buildinfo"
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.Current())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
