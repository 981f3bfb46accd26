// Package pipeline sequences the document intake run:
// validate -> {image | pdf | other} -> save -> success, with per-step retry
// and a wired failure terminal.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/docuflow/go-document-idp/internal/classify"
	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/extract"
	"github.com/docuflow/go-document-idp/internal/storage"
)

// notFound fills event fields whose source was absent from the trigger; the
// placeholder propagates downstream instead of failing validation.
const notFound = "NOT_FOUND"

// Extractor is the document-understanding capability used by the image and
// PDF branches.
type Extractor interface {
	ExtractImage(ctx context.Context, data []byte, format string) (map[string]any, error)
	ExtractPDF(ctx context.Context, data []byte) (map[string]any, error)
}

// IdentityExtractor is the secondary structured extraction for identity
// documents.
type IdentityExtractor interface {
	Analyze(ctx context.Context, data []byte) (map[string]any, error)
}

// ObjectFetcher downloads the raw uploaded object.
type ObjectFetcher interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// RecordWriter persists the version-1 record produced by the save step.
type RecordWriter interface {
	PutItem(ctx context.Context, item storage.Item) error
}

// StepRecorder emits best-effort per-step metrics. May be nil.
type StepRecorder interface {
	RecordStep(ctx context.Context, step string, success bool) error
}

// Orchestrator drives one pipeline run to its terminal state.
type Orchestrator struct {
	extractor Extractor
	identity  IdentityExtractor
	objects   ObjectFetcher
	store     RecordWriter
	metrics   StepRecorder
	logger    *slog.Logger

	retry   RetryPolicy
	nowFunc func() time.Time
	newID   func() string
}

// NewOrchestrator wires an orchestrator with the default retry policy.
// metrics may be nil.
func NewOrchestrator(extractor Extractor, identity IdentityExtractor, objects ObjectFetcher, store RecordWriter, metrics StepRecorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		identity:  identity,
		objects:   objects,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		retry:     DefaultRetryPolicy(),
		nowFunc:   time.Now,
		newID:     func() string { return ulid.Make().String() },
	}
}

// WithRetryPolicy overrides the per-step retry policy.
func (o *Orchestrator) WithRetryPolicy(p RetryPolicy) *Orchestrator {
	o.retry = p
	return o
}

// Run executes the full state sequence for one trigger. On failure the
// returned event carries the failed step and cause; the error is returned
// alongside so callers can surface it operationally.
func (o *Orchestrator) Run(ctx context.Context, trigger Trigger) (*Event, error) {
	event, err := o.validate(trigger)
	if err != nil {
		// Unrecognized payload shape is a non-retryable input error.
		return o.fail(ctx, event, StepValidate, err)
	}
	o.record(ctx, StepValidate, true)

	logger := o.logger.With("correlation_id", event.CorrelationID, "input_type", event.InputType)
	logger.Info("pipeline run started", "object_key", event.ObjectKey)

	var branch Step
	switch event.InputType {
	case classify.TypeImage:
		branch = StepProcessImage
		err = o.withRetry(ctx, func() error { return o.processImage(ctx, event) })
	case classify.TypePDF:
		branch = StepProcessPDF
		err = o.withRetry(ctx, func() error { return o.processPDF(ctx, event) })
	default:
		branch = StepProcessOther
		o.processOther(event)
	}
	if err != nil {
		return o.fail(ctx, event, branch, err)
	}
	o.record(ctx, branch, true)

	if err := o.withRetry(ctx, func() error { return o.save(ctx, event) }); err != nil {
		return o.fail(ctx, event, StepSave, err)
	}
	o.record(ctx, StepSave, true)

	o.record(ctx, StepSuccess, true)
	logger.Info("pipeline run succeeded", "document_id", event.DocumentID)
	return event, nil
}

// validate parses the trigger, classifies the object and assigns the
// correlation id. Absent bucket/object fields become NOT_FOUND placeholders.
func (o *Orchestrator) validate(trigger Trigger) (*Event, error) {
	event := &Event{
		CorrelationID: trigger.CorrelationID,
		EventTime:     trigger.Time,
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}
	if event.EventTime == "" {
		event.EventTime = notFound
	}

	if len(trigger.Detail) == 0 {
		return event, errors.New("trigger payload has no detail")
	}
	var detail s3Detail
	if err := json.Unmarshal(trigger.Detail, &detail); err != nil {
		return event, fmt.Errorf("unrecognized trigger payload: %w", err)
	}

	event.BucketName = detail.Bucket.Name
	if event.BucketName == "" {
		event.BucketName = notFound
	}
	event.ObjectKey = detail.Object.Key
	if event.ObjectKey == "" {
		event.ObjectKey = notFound
	}

	event.InputType, event.InputExtension = classify.FromObjectKey(event.ObjectKey)
	return event, nil
}

func (o *Orchestrator) processImage(ctx context.Context, event *Event) error {
	data, err := o.objects.Download(ctx, event.ObjectKey)
	if err != nil {
		return err
	}

	extracted, err := o.extractor.ExtractImage(ctx, data, event.InputExtension)
	if err != nil {
		return err
	}
	event.ExtractedData = extracted

	if extract.IsIdentityDocument(event.ObjectKey) {
		fields, err := o.identity.Analyze(ctx, data)
		if err != nil {
			return err
		}
		event.IdentityData = fields
	}
	return nil
}

func (o *Orchestrator) processPDF(ctx context.Context, event *Event) error {
	data, err := o.objects.Download(ctx, event.ObjectKey)
	if err != nil {
		return err
	}

	extracted, err := o.extractor.ExtractPDF(ctx, data)
	if err != nil {
		return err
	}
	event.ExtractedData = extracted
	return nil
}

// processOther annotates the event and passes it through unchanged. No
// extraction is attempted for unknown types.
func (o *Orchestrator) processOther(event *Event) {
	event.ProcessOtherNote = "Process Other not implemented yet."
	o.logger.Info(event.ProcessOtherNote, "input_type", event.InputType)
}

// save persists version 1 of the record with status PENDING, including the
// ordering-facet attributes. The document id is generated once, so a retried
// save does not mint a second id.
func (o *Orchestrator) save(ctx context.Context, event *Event) error {
	if event.DocumentID == "" {
		event.DocumentID = o.newID()
	}
	now := o.nowFunc().UTC()

	var data any = notFound
	if event.ExtractedData != nil {
		data = event.ExtractedData
	}

	item := storage.Item{
		storage.AttrPK:     documents.PrimaryKey(event.DocumentID),
		storage.AttrSK:     documents.VersionLatest,
		storage.AttrGSI1PK: documents.OrderingPartition,
		storage.AttrGSI1SK: documents.OrderingSortKey(now),

		documents.AttrData:           data,
		documents.AttrStatus:         documents.StatusPending,
		documents.AttrLastProcessed:  now.Format(documents.TimestampFormat),
		documents.AttrInputType:      event.InputType,
		documents.AttrInputExtension: event.InputExtension,
		documents.AttrCorrelationID:  event.CorrelationID,
		documents.AttrSourceAssetKey: event.ObjectKey,
		documents.AttrEventTime:      event.EventTime,
	}
	if event.IdentityData != nil {
		item["analyze_id_result"] = event.IdentityData
	}

	if err := o.store.PutItem(ctx, item); err != nil {
		return err
	}
	event.SaveStatusCode = 200
	return nil
}

// withRetry applies the step retry policy, marking malformed extraction
// responses permanent: re-sending the same bytes cannot fix a logic error.
func (o *Orchestrator) withRetry(ctx context.Context, op func() error) error {
	return o.retry.Do(ctx, func() error {
		err := op()
		if errors.Is(err, extract.ErrMalformedResponse) {
			return backoff.Permanent(err)
		}
		return err
	})
}

// fail routes a run to the failure terminal: the event is stamped with the
// failed step and cause before the error is surfaced.
func (o *Orchestrator) fail(ctx context.Context, event *Event, step Step, err error) (*Event, error) {
	event.FailedStep = step.String()
	event.FailureCause = err.Error()
	o.record(ctx, step, false)
	o.record(ctx, StepFail, true)
	o.logger.Error("pipeline run failed", "step", step.String(), "error", err, "correlation_id", event.CorrelationID)
	return event, fmt.Errorf("step %s: %w", step, err)
}

func (o *Orchestrator) record(ctx context.Context, step Step, success bool) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.RecordStep(ctx, step.String(), success); err != nil {
		o.logger.Warn("metric emission failed", "step", step.String(), "error", err)
	}
}
