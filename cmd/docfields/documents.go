package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/export"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

var (
	listStatus   string
	exportStatus string
	exportSchema string
	exportOut    string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List documents in the status store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := parseStatusFlag(listStatus)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.docs.List(cmd.Context(), status)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored documents and their fields as XLSX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := parseStatusFlag(exportStatus)
		if err != nil {
			return err
		}
		var sc *schema.Schema
		if exportSchema != "" {
			if sc, err = schema.Load(exportSchema); err != nil {
				return err
			}
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := export.NewService(a.docs, logger).ExportDocumentsXLSX(cmd.Context(), status, sc)
		if err != nil {
			return err
		}
		return os.WriteFile(exportOut, data, 0o644)
	},
}

var dbHealthCmd = &cobra.Command{
	Use:   "db-health",
	Short: "Check that the status store is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.db.HealthCheck(cmd.Context(), time.Second); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")
		return err
	},
}

func init() {
	documentsCmd.Flags().StringVar(&listStatus, "status", "", "only documents with this status")

	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only documents with this status")
	exportCmd.Flags().StringVarP(&exportSchema, "schema", "s", "", "schema whose fields become columns")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "documents.xlsx", "output file")
}

func parseStatusFlag(s string) (constants.ProcessingStatus, error) {
	if s == "" {
		return "", nil
	}
	st, ok := constants.ParseStatus(s)
	if !ok {
		return "", fmt.Errorf("unknown status %q (want pending, processing, completed or failed)", s)
	}
	return st, nil
}
