package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/gateway"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
	"github.com/joseph-ayodele/expense-docs/internal/persistence"
	"github.com/joseph-ayodele/expense-docs/internal/session"
)

type submitOutput struct {
	Archivo         string   `json:"archivo"`
	MIMEType        string   `json:"mime_type"`
	TipoDocumento   string   `json:"tipo_documento"`
	Solicitud       string   `json:"solicitud"`
	Estado          string   `json:"estado"`
	Total           *string  `json:"total"`
	RUC             *string  `json:"ruc"`
	Fecha           *string  `json:"fecha"`
	RazonSocial     string   `json:"razon_social"`
	NumeroDocumento string   `json:"numero_documento"`
	Aviso           string   `json:"aviso,omitempty"`
	IDs             []string `json:"ids,omitempty"`
	Operaciones     []string `json:"numeros_operacion,omitempty"`
}

func newSubmitCmd() *cobra.Command {
	var (
		solicitudID string
		docType     string
		manualTotal string
		ocrURL      string
		persistURL  string
		timeout     time.Duration
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Extract a document's fields via OCR and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := batchLogger()

			if ocrURL != "" {
				cfg.Gateway.OCRBaseURL = ocrURL
			}
			if persistURL != "" {
				cfg.Gateway.PersistBaseURL = persistURL
			}
			if timeout > 0 {
				cfg.Gateway.OCRTimeout = timeout
				cfg.Gateway.PersistTimeout = timeout
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}
			dt, ok := constants.ParseDocumentType(docType)
			if !ok {
				return fmt.Errorf("unknown document type %q (want one of %s)", docType, strings.Join(constants.DocumentTypes(), ", "))
			}

			in := intake.New(intake.Config{
				MaxBytes:       cfg.Intake.MaxUploadBytes,
				HandheldDevice: cfg.Intake.HandheldDevice,
			}, logger)
			gw, err := gateway.NewClient(gateway.Config{
				BaseURL: cfg.Gateway.OCRBaseURL,
				Timeout: cfg.Gateway.OCRTimeout,
			}, logger)
			if err != nil {
				return err
			}
			handoff := persistence.NewClient(persistence.Config{
				BaseURL: cfg.Gateway.PersistBaseURL,
				Timeout: cfg.Gateway.PersistTimeout,
			}, logger)

			sess := session.New(in, gw, handoff, logger,
				session.WithDocumentType(dt),
				session.WithSolicitudID(solicitudID),
				session.WithPreviews(false),
			)
			defer sess.Cancel()

			cand, err := intake.ReadCandidate(args[0], cfg.Intake.MaxUploadBytes)
			if err != nil {
				return err
			}
			if err := sess.SelectFile(cand); err != nil {
				return err
			}

			done, err := sess.Process(ctx)
			if err != nil {
				return err
			}
			var outcome session.Outcome
			select {
			case outcome = <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			if outcome.State == constants.StateFailed {
				return outcome.Err
			}

			if manualTotal != "" {
				if err := sess.SetManualTotal(manualTotal); err != nil {
					return err
				}
			}
			if dryRun {
				return printSubmit(sess.Snapshot())
			}

			pre := sess.Snapshot()
			if _, err := sess.Submit(ctx); err != nil {
				if common.KindOf(err) == common.KindMissingTotal {
					_ = printSubmit(sess.Snapshot())
					return errors.New(common.MsgMissingTotal + ": pass --total")
				}
				return err
			}
			// the file is released on completion; report it from before the handoff
			post := sess.Snapshot()
			pre.State, pre.Receipt, pre.ErrMessage = post.State, post.Receipt, ""
			return printSubmit(pre)
		},
	}
	cmd.Flags().StringVarP(&solicitudID, "solicitud", "s", "", "Reimbursement request id the document belongs to")
	cmd.Flags().StringVarP(&docType, "type", "t", string(constants.Boleta), "Document type: "+strings.Join(constants.DocumentTypes(), ", "))
	cmd.Flags().StringVar(&manualTotal, "total", "", "Total to use when OCR finds none")
	cmd.Flags().StringVar(&ocrURL, "ocr-url", "", "OCR service base URL (default $OCR_BASE_URL)")
	cmd.Flags().StringVar(&persistURL, "persist-url", "", "Persistence service base URL (default $PERSIST_BASE_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default $OCR_TIMEOUT)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the extracted fields without saving")
	_ = cmd.MarkFlagRequired("solicitud")
	return cmd
}

func printSubmit(snap session.Snapshot) error {
	out := submitOutput{
		Archivo:         snap.FileName,
		MIMEType:        snap.MIMEType,
		TipoDocumento:   string(snap.DocumentType),
		Solicitud:       snap.SolicitudID,
		Estado:          string(snap.State),
		RUC:             snap.Fields.RUC,
		Fecha:           snap.Fields.Fecha,
		RazonSocial:     snap.Fields.RazonSocial,
		NumeroDocumento: snap.Fields.NumeroDocumento,
		Aviso:           snap.ErrMessage,
	}
	if snap.Fields.Total != nil {
		t := fmt.Sprintf("%.2f", *snap.Fields.Total)
		out.Total = &t
	}
	if snap.Receipt != nil {
		out.IDs = snap.Receipt.IDs
		out.Operaciones = snap.Receipt.NumerosOperacion
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
