// Package documents holds the document record model and the record service:
// read, versioned-merge patch and delete over the single-table store.
package documents

import "time"

// Document statuses
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
)

// Record attribute names shared between the pipeline's save step, the record
// service and the after-IDP worker.
const (
	AttrData           = "data"
	AttrStatus         = "status"
	AttrLastProcessed  = "last_processed"
	AttrSourceAssetKey = "s3_key_original_asset"
	AttrFinalAssetKey  = "final_asset_key"
	AttrCorrelationID  = "correlation_id"
	AttrInputType      = "input_type"
	AttrInputExtension = "input_extension"
	AttrEventTime      = "s3_event_time"
	AttrPresignedURL   = "presigned_url"
)

// Ordering facet: every record also appears under ALL_DOCUMENTS keyed by its
// creation timestamp, so the latest N documents are one GSI query away.
const (
	OrderingPartition = "ALL_DOCUMENTS"
	OrderingPrefix    = "CREATED_AT#"
	OrderingIndex     = "GSI1"
)

// Version keys. Only version 1 is modeled for now; the VERSION# prefix leaves
// room for multi-version history.
const (
	VersionPrefix = "VERSION#"
	VersionLatest = "VERSION#1"
)

// TimestampFormat is ISO-8601 UTC with fixed-width fractional seconds, so
// string order equals time order in sort keys.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// PrimaryKey builds the partition key of a document record.
func PrimaryKey(documentID string) string {
	return "DOCUMENT#" + documentID
}

// OrderingSortKey builds the GSI1 sort key for a creation time.
func OrderingSortKey(t time.Time) string {
	return OrderingPrefix + t.UTC().Format(TimestampFormat)
}

// Summary is the field-projected listing row returned by ListRecent.
type Summary struct {
	DocumentID    string `json:"document_id"`
	DocumentName  string `json:"document_name"`
	Status        string `json:"status"`
	LastProcessed string `json:"last_processed"`
}

// Outcome is the structured result of a patch or delete. Warning carries the
// degraded-notification path without failing the operation.
type Outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// Outcome statuses
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// NotificationMessage is the payload sent to the after-IDP queue on a
// non-suppressed patch. Data carries the pre-patch extraction payload.
type NotificationMessage struct {
	DocumentID         string         `json:"document_id" validate:"required"`
	S3KeyOriginalAsset string         `json:"s3_key_original_asset" validate:"required"`
	CorrelationID      string         `json:"correlation_id"`
	Data               map[string]any `json:"data"`
}

// NotFoundOutcome is the outcome for patch/delete/get on an unknown id.
func NotFoundOutcome() Outcome {
	return Outcome{Status: OutcomeError, Message: "not found"}
}
