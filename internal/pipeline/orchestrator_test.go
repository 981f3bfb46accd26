package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/extract"
	"github.com/docuflow/go-document-idp/internal/storage"
)

// testRetryPolicy keeps retry semantics but collapses the waits so tests run
// instantly.
func testRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		Multiplier:      1.0,
		MaxInterval:     time.Millisecond,
	}
}

type fakeExtractor struct {
	imageCalls int
	pdfCalls   int
	result     map[string]any
	failUntil  int // attempts that fail before the first success
	err        error
}

func (f *fakeExtractor) fail(calls int) error {
	if f.err != nil && calls <= f.failUntil {
		return f.err
	}
	return nil
}

func (f *fakeExtractor) ExtractImage(ctx context.Context, data []byte, format string) (map[string]any, error) {
	f.imageCalls++
	if err := f.fail(f.imageCalls); err != nil {
		return nil, err
	}
	return f.result, nil
}

func (f *fakeExtractor) ExtractPDF(ctx context.Context, data []byte) (map[string]any, error) {
	f.pdfCalls++
	if err := f.fail(f.pdfCalls); err != nil {
		return nil, err
	}
	return f.result, nil
}

type fakeIdentity struct {
	calls  int
	fields map[string]any
}

func (f *fakeIdentity) Analyze(ctx context.Context, data []byte) (map[string]any, error) {
	f.calls++
	return f.fields, nil
}

type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) Download(ctx context.Context, key string) ([]byte, error) {
	d, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return d, nil
}

type fakeWriter struct {
	puts []storage.Item
	err  error
}

func (f *fakeWriter) PutItem(ctx context.Context, item storage.Item) error {
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, item)
	return nil
}

type recordedStep struct {
	step    string
	success bool
}

type fakeRecorder struct {
	steps []recordedStep
}

func (f *fakeRecorder) RecordStep(ctx context.Context, step string, success bool) error {
	f.steps = append(f.steps, recordedStep{step: step, success: success})
	return nil
}

func s3Trigger(bucket, key string) Trigger {
	detail, _ := json.Marshal(map[string]any{
		"bucket": map[string]any{"name": bucket},
		"object": map[string]any{"key": key},
	})
	return Trigger{
		Time:          "2024-03-10T12:00:00Z",
		CorrelationID: "corr-1",
		Detail:        detail,
	}
}

func newTestOrchestrator(ex *fakeExtractor, id *fakeIdentity, fetch *fakeFetcher, store *fakeWriter, rec StepRecorder) *Orchestrator {
	o := NewOrchestrator(ex, id, fetch, store, rec, slog.Default()).WithRetryPolicy(testRetryPolicy())
	o.nowFunc = func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	o.newID = func() string { return "01TESTULID" }
	return o
}

func TestRun_PDFBranch(t *testing.T) {
	ex := &fakeExtractor{result: map[string]any{"total": "126.29"}}
	store := &fakeWriter{}
	rec := &fakeRecorder{}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{
		data: map[string][]byte{"receipts/2024/invoice.pdf": []byte("%PDF")},
	}, store, rec)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "receipts/2024/invoice.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "pdf", event.InputType)
	assert.Equal(t, "pdf", event.InputExtension)
	assert.Equal(t, "01TESTULID", event.DocumentID)
	assert.Equal(t, 200, event.SaveStatusCode)
	assert.Equal(t, 1, ex.pdfCalls)
	assert.Zero(t, ex.imageCalls)

	require.Len(t, store.puts, 1)
	item := store.puts[0]
	assert.Equal(t, "DOCUMENT#01TESTULID", item[storage.AttrPK])
	assert.Equal(t, documents.VersionLatest, item[storage.AttrSK])
	assert.Equal(t, documents.OrderingPartition, item[storage.AttrGSI1PK])
	assert.Equal(t, "CREATED_AT#2024-03-10T12:00:00.000000Z", item[storage.AttrGSI1SK])
	assert.Equal(t, documents.StatusPending, item[documents.AttrStatus])
	assert.Equal(t, map[string]any{"total": "126.29"}, item[documents.AttrData])
	assert.Equal(t, "corr-1", item[documents.AttrCorrelationID])
	assert.Equal(t, "receipts/2024/invoice.pdf", item[documents.AttrSourceAssetKey])
	_, hasIdentity := item["analyze_id_result"]
	assert.False(t, hasIdentity)

	assert.Contains(t, rec.steps, recordedStep{step: "validate", success: true})
	assert.Contains(t, rec.steps, recordedStep{step: "process_pdf", success: true})
	assert.Contains(t, rec.steps, recordedStep{step: "save_data", success: true})
	assert.Contains(t, rec.steps, recordedStep{step: "success", success: true})
}

func TestRun_ImageBranchWithIdentityDocument(t *testing.T) {
	ex := &fakeExtractor{result: map[string]any{"tipo": "cedula"}}
	identity := &fakeIdentity{fields: map[string]any{"DOCUMENT_NUMBER": "123"}}
	store := &fakeWriter{}
	o := newTestOrchestrator(ex, identity, &fakeFetcher{
		data: map[string][]byte{"uploads/id_card.jpg": {0xff, 0xd8}},
	}, store, nil)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "uploads/id_card.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "image", event.InputType)
	assert.Equal(t, "jpg", event.InputExtension)
	assert.Equal(t, 1, ex.imageCalls)
	assert.Equal(t, 1, identity.calls)
	assert.Equal(t, map[string]any{"DOCUMENT_NUMBER": "123"}, event.IdentityData)

	require.Len(t, store.puts, 1)
	assert.Equal(t, map[string]any{"DOCUMENT_NUMBER": "123"}, store.puts[0]["analyze_id_result"])
}

func TestRun_PlainImageSkipsIdentityAnalysis(t *testing.T) {
	identity := &fakeIdentity{fields: map[string]any{"X": "Y"}}
	o := newTestOrchestrator(
		&fakeExtractor{result: map[string]any{"tipo": "recibo"}},
		identity,
		&fakeFetcher{data: map[string][]byte{"uploads/receipt.png": {0x89}}},
		&fakeWriter{}, nil,
	)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "uploads/receipt.png"))
	require.NoError(t, err)
	assert.Zero(t, identity.calls)
	assert.Nil(t, event.IdentityData)
}

func TestRun_OtherBranchPassesThrough(t *testing.T) {
	ex := &fakeExtractor{}
	store := &fakeWriter{}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{}, store, nil)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "archive.zip"))
	require.NoError(t, err)

	assert.Equal(t, "zip", event.InputType)
	assert.Equal(t, "Process Other not implemented yet.", event.ProcessOtherNote)
	assert.Zero(t, ex.pdfCalls)
	assert.Zero(t, ex.imageCalls)

	// No extraction happened: the record carries the placeholder, not a map.
	require.Len(t, store.puts, 1)
	assert.Equal(t, "NOT_FOUND", store.puts[0][documents.AttrData])
}

func TestRun_TransientExtractionFailureIsRetried(t *testing.T) {
	ex := &fakeExtractor{
		result:    map[string]any{"total": "1"},
		failUntil: 4,
		err:       errors.New("throttled"),
	}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{
		data: map[string][]byte{"invoice.pdf": []byte("%PDF")},
	}, &fakeWriter{}, nil)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "invoice.pdf"))
	require.NoError(t, err, "5th attempt should succeed within the retry budget")
	assert.Equal(t, 5, ex.pdfCalls)
	assert.Empty(t, event.FailedStep)
}

func TestRun_ExhaustedRetriesStampFailureTerminal(t *testing.T) {
	ex := &fakeExtractor{
		failUntil: 100,
		err:       errors.New("throttled"),
	}
	rec := &fakeRecorder{}
	store := &fakeWriter{}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{
		data: map[string][]byte{"invoice.pdf": []byte("%PDF")},
	}, store, rec)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "invoice.pdf"))
	require.Error(t, err)
	assert.Equal(t, 5, ex.pdfCalls, "retry budget is 5 attempts")
	assert.Equal(t, "process_pdf", event.FailedStep)
	assert.Contains(t, event.FailureCause, "throttled")
	assert.Empty(t, store.puts, "nothing is persisted after a failed branch")
	assert.Contains(t, rec.steps, recordedStep{step: "process_pdf", success: false})
	assert.Contains(t, rec.steps, recordedStep{step: "fail", success: true})
}

func TestRun_MalformedResponseFailsWithoutRetry(t *testing.T) {
	ex := &fakeExtractor{
		failUntil: 100,
		err:       fmt.Errorf("%w: unexpected token", extract.ErrMalformedResponse),
	}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{
		data: map[string][]byte{"invoice.pdf": []byte("%PDF")},
	}, &fakeWriter{}, nil)

	event, err := o.Run(context.Background(), s3Trigger("uploads", "invoice.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrMalformedResponse)
	assert.Equal(t, 1, ex.pdfCalls, "a logic error must not be retried")
	assert.Equal(t, "process_pdf", event.FailedStep)
}

func TestRun_SaveIsRetriedAndKeepsOneDocumentID(t *testing.T) {
	store := &fakeWriter{err: errors.New("provisioned throughput exceeded")}
	o := newTestOrchestrator(
		&fakeExtractor{result: map[string]any{"a": "1"}},
		&fakeIdentity{},
		&fakeFetcher{data: map[string][]byte{"invoice.pdf": []byte("%PDF")}},
		store, nil,
	)
	ids := 0
	o.newID = func() string {
		ids++
		return fmt.Sprintf("ULID-%d", ids)
	}

	event, err := o.Run(context.Background(), s3Trigger("uploads", "invoice.pdf"))
	require.Error(t, err)
	assert.Equal(t, "save_data", event.FailedStep)
	assert.Equal(t, 1, ids, "retried saves must not mint a second document id")
	assert.Equal(t, "ULID-1", event.DocumentID)
}

func TestValidate_MissingFieldsBecomePlaceholders(t *testing.T) {
	o := newTestOrchestrator(&fakeExtractor{}, &fakeIdentity{}, &fakeFetcher{}, &fakeWriter{}, nil)

	event, err := o.validate(Trigger{
		Detail: json.RawMessage(`{"object":{"key":"doc.pdf"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "NOT_FOUND", event.BucketName)
	assert.Equal(t, "NOT_FOUND", event.EventTime)
	assert.Equal(t, "doc.pdf", event.ObjectKey)
	assert.NotEmpty(t, event.CorrelationID, "a correlation id is minted when absent")
}

func TestRun_EmptyDetailIsFatal(t *testing.T) {
	o := newTestOrchestrator(&fakeExtractor{}, &fakeIdentity{}, &fakeFetcher{}, &fakeWriter{}, nil)

	event, err := o.Run(context.Background(), Trigger{})
	require.Error(t, err)
	assert.Equal(t, "validate", event.FailedStep)
}

func TestRun_UnparseableDetailIsFatal(t *testing.T) {
	ex := &fakeExtractor{}
	o := newTestOrchestrator(ex, &fakeIdentity{}, &fakeFetcher{}, &fakeWriter{}, nil)

	event, err := o.Run(context.Background(), Trigger{Detail: json.RawMessage(`[1,2,3]`)})
	require.Error(t, err)
	assert.Equal(t, "validate", event.FailedStep)
	assert.Zero(t, ex.pdfCalls+ex.imageCalls, "no branch runs after a fatal validate")
}
