package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docfields/internal/authoring"
	"github.com/joseph-ayodele/docfields/internal/export"
	"github.com/joseph-ayodele/docfields/internal/ingest"
	"github.com/joseph-ayodele/docfields/internal/pipeline"
	repo "github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

var (
	extractSchema  string
	extractOut     string
	extractPerPage bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [files or directories...]",
	Short: "Extract schema fields from documents",
	Long: `Extract runs the schema against each document and prints the field
mapping as JSON. Directories are scanned for supported documents.

With --out the results are written as a spreadsheet instead (.xlsx or .csv).
With --per-page every page is evaluated on its own and yields one row.

Schema fields that only carry a sample value get a pattern inferred from the
first document's text before extraction starts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractSchema, "schema", "s", "", "schema file (.yaml or .json)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write results to a .xlsx or .csv file")
	extractCmd.Flags().BoolVar(&extractPerPage, "per-page", false, "one result row per page")
	_ = extractCmd.MarkFlagRequired("schema")
}

type documentOutput struct {
	Document string            `json:"document"`
	ID       string            `json:"id,omitempty"`
	Page     int               `json:"page,omitempty"`
	Status   string            `json:"status"`
	Fields   map[string]string `json:"fields,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sc, err := schema.Load(extractSchema)
	if err != nil {
		return err
	}
	if extractOut != "" {
		if err := export.CheckColumns(sc, outputMeta...); err != nil {
			return err
		}
	}
	files, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported documents in %s", strings.Join(args, ", "))
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if sc, err = resolveSamples(cmd, a, sc, files[0]); err != nil {
		return err
	}

	var outputs []documentOutput
	if extractPerPage {
		outputs, err = extractPages(cmd, a, sc, files)
		if err != nil {
			return err
		}
	} else {
		items := make([]pipeline.BatchItem, 0, len(files))
		for _, f := range files {
			doc, err := a.docs.Create(ctx, repo.CreateDocumentRequest{Name: filepath.Base(f), SourcePath: f, SchemaName: sc.Name})
			if err != nil {
				return err
			}
			items = append(items, pipeline.BatchItem{DocumentID: doc.ID, Path: f})
		}
		for _, r := range a.processor.ExtractBatch(ctx, items, sc) {
			out := documentOutput{Document: r.Item.Path, ID: r.Item.DocumentID.String(), Status: "completed", Fields: r.Result.Fields}
			if r.Err != nil {
				out.Status, out.Error = "failed", r.Err.Error()
			}
			outputs = append(outputs, out)
		}
	}

	if extractOut != "" {
		return writeOutputs(extractOut, sc, outputs)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}

func extractPages(cmd *cobra.Command, a *app, sc *schema.Schema, files []string) ([]documentOutput, error) {
	ctx := cmd.Context()
	var outputs []documentOutput
	for _, f := range files {
		pages, err := a.raster.Rasterize(ctx, f)
		if err != nil {
			outputs = append(outputs, documentOutput{Document: f, Status: "failed", Error: err.Error()})
			continue
		}
		rows, err := a.processor.ExtractPages(ctx, pages.Paths, sc)
		_ = pages.Close()
		if err != nil {
			outputs = append(outputs, documentOutput{Document: f, Status: "failed", Error: err.Error()})
			continue
		}
		for _, r := range rows {
			outputs = append(outputs, documentOutput{Document: f, Page: r.Page, Status: "completed", Fields: r.Fields})
		}
	}
	return outputs, nil
}

// resolveSamples turns sample-value fields into patterns using the text of
// the first document.
func resolveSamples(cmd *cobra.Command, a *app, sc *schema.Schema, first string) (*schema.Schema, error) {
	needed := false
	for _, f := range sc.Fields {
		if f.Value != "" && f.Mode() == schema.ModeFullPage {
			needed = true
			break
		}
	}
	if !needed {
		return sc, nil
	}
	text, err := a.processor.ReadText(cmd.Context(), first)
	if err != nil {
		return nil, fmt.Errorf("read sample text: %w", err)
	}
	return authoring.ResolveSamples(sc, text.Text, logger)
}

func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, arg)
			continue
		}
		found, stats, err := ingest.ScanDirectory(arg, nil, true)
		if err != nil {
			return nil, err
		}
		logger.Info("directory scanned", "root", arg, "scanned", stats.Scanned, "matched", stats.Matched)
		files = append(files, found...)
	}
	return files, nil
}

var outputMeta = []string{"Document", "Page", "Status", "Error"}

func writeOutputs(path string, sc *schema.Schema, outputs []documentOutput) error {
	if err := export.CheckColumns(sc, outputMeta...); err != nil {
		return err
	}
	cols := export.Columns(sc, outputMeta[:3]...)
	cols = append(cols, "Error")
	rows := make([]export.Row, 0, len(outputs))
	for _, o := range outputs {
		row := export.Row{"Document": o.Document, "Status": o.Status, "Error": o.Error}
		if o.Page > 0 {
			row["Page"] = strconv.Itoa(o.Page)
		}
		for k, v := range o.Fields {
			if _, taken := row[k]; !taken {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = export.WriteCSV(f, cols, rows)
	case ".xlsx":
		err = export.WriteXLSX(f, cols, rows)
	default:
		err = fmt.Errorf("unsupported output format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	logger.Info("results written", "path", path, "rows", len(rows))
	return nil
}
