package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/authoring"
)

var (
	inferTextFile string
	inferValue    string
	inferContext  int

	thumbOut  string
	thumbSize int
)

var inferRegexCmd = &cobra.Command{
	Use:   "infer-regex",
	Short: "Derive a field pattern from a sample value and its surrounding text",
	Long: `Infer-regex finds the first occurrence of --value in the text file and
prints a pattern anchored on the text around it. The pattern's group
captures the value.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, err := os.ReadFile(inferTextFile)
		if err != nil {
			return err
		}
		pattern, ok := authoring.InferRegex(string(text), inferValue, inferContext)
		if !ok {
			return fmt.Errorf("value %q not found in %s", inferValue, inferTextFile)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), pattern)
		return err
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Print every recognized word and its position, per page",
	Long: `Analyze recognizes each page of the document and prints the words with
their boxes as JSON. Use it to pick anchor texts and offsets for template
fields.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.raster.Rasterize(ctx, args[0])
		if err != nil {
			return err
		}
		defer pages.Close()

		res, err := authoring.NewAnalyzer(a.extractor, logger).Analyze(ctx, pages.Paths)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail FILE",
	Short: "Write a PNG thumbnail of the first page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.raster.Rasterize(ctx, args[0])
		if err != nil {
			return err
		}
		defer pages.Close()
		if pages.Len() == 0 {
			return fmt.Errorf("%s has no pages", args[0])
		}
		if err := a.images.Thumbnail(ctx, pages.Paths[0], thumbOut, thumbSize); err != nil {
			return err
		}
		logger.Info("thumbnail written", "path", thumbOut, "size", thumbSize)
		return nil
	},
}

func init() {
	inferRegexCmd.Flags().StringVar(&inferTextFile, "text-file", "", "file holding the OCR text")
	inferRegexCmd.Flags().StringVar(&inferValue, "value", "", "sample value to locate")
	inferRegexCmd.Flags().IntVar(&inferContext, "context", constants.DefaultContextChars, "characters of context on each side")
	_ = inferRegexCmd.MarkFlagRequired("text-file")
	_ = inferRegexCmd.MarkFlagRequired("value")

	thumbnailCmd.Flags().StringVarP(&thumbOut, "out", "o", "thumbnail.png", "output PNG path")
	thumbnailCmd.Flags().IntVar(&thumbSize, "size", 200, "bounding square in pixels")
}
