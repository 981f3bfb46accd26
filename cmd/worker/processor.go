package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docuflow/go-document-idp/internal/certgen"
	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/logging"
)

// AssetUploader stores the generated certificate next to the raw uploads.
type AssetUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Processor consumes one notification message per invocation, renders the
// certificate and writes its reference back onto the record.
type Processor struct {
	service  *documents.Service
	uploader AssetUploader
	validate *validatorv10.Validate
	logger   *slog.Logger
	nowFunc  func() time.Time
	newID    func() string
}

// NewProcessor creates the after-IDP worker processor.
func NewProcessor(service *documents.Service, uploader AssetUploader, logger *slog.Logger) *Processor {
	return &Processor{
		service:  service,
		uploader: uploader,
		validate: validatorv10.New(),
		logger:   logger,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			p.logger.Error("worker error", "error", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg documents.NotificationMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if err := p.validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid notification message: %w", err)
	}

	logger := logging.WithCorrelation(p.logger, msg.CorrelationID).With("document_id", msg.DocumentID)
	logger.Info("generating certificate")

	record, err := p.service.GetByID(ctx, msg.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if record == nil {
		// Should never happen for a freshly patched document; DLQ if it does.
		return fmt.Errorf("document not found: %s", msg.DocumentID)
	}

	data, _ := record[documents.AttrData].(map[string]any)
	if data == nil {
		data = msg.Data
	}

	cert := certgen.FromExtractedData(msg.DocumentID, data, p.nowFunc())
	pdfBytes, err := certgen.Render(cert)
	if err != nil {
		return err
	}

	assetKey := fmt.Sprintf(certificateKeyPattern, p.newID())
	if err := p.uploader.Upload(ctx, assetKey, pdfBytes, "application/pdf"); err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}

	// notify=false: the write-back patch must not trigger another
	// notification, or generation would loop forever.
	outcome, err := p.service.Patch(ctx, msg.DocumentID, map[string]any{
		documents.AttrFinalAssetKey: assetKey,
		documents.AttrData:          map[string]any{"metadata": certificateMetadata},
	}, false)
	if err != nil {
		return fmt.Errorf("write back certificate reference: %w", err)
	}
	if outcome.Status != documents.OutcomeSuccess {
		return fmt.Errorf("write back certificate reference: %s", outcome.Message)
	}

	logger.Info("certificate stored", "final_asset_key", assetKey)
	return nil
}
