package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-docs/internal/persistence"
)

func persistenceClient(persistURL string) *persistence.Client {
	if persistURL != "" {
		cfg.Gateway.PersistBaseURL = persistURL
	}
	return persistence.NewClient(persistence.Config{
		BaseURL: cfg.Gateway.PersistBaseURL,
		Timeout: cfg.Gateway.PersistTimeout,
	}, batchLogger())
}

func newListCmd() *cobra.Command {
	var persistURL string
	cmd := &cobra.Command{
		Use:   "list <solicitud-id>",
		Short: "List the documents saved for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := persistenceClient(persistURL).ListBySolicitud(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		},
	}
	cmd.Flags().StringVar(&persistURL, "persist-url", "", "Persistence service base URL (default $PERSIST_BASE_URL)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		persistURL string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "export <solicitud-id>",
		Short: "Download a request's documents as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xlsx, err := persistenceClient(persistURL).ExportXLSX(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("solicitud-%s.xlsx", args[0])
			}
			if err := os.WriteFile(output, xlsx, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(xlsx))
			return nil
		},
	}
	cmd.Flags().StringVar(&persistURL, "persist-url", "", "Persistence service base URL (default $PERSIST_BASE_URL)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default solicitud-<id>.xlsx)")
	return cmd
}
