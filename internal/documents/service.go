package documents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/docuflow/go-document-idp/internal/storage"
)

// PresignExpiry is how long minted read URLs stay valid.
const PresignExpiry = time.Hour

// DefaultListLimit bounds ListRecent when the caller does not say otherwise.
const DefaultListLimit = 30

// RecordStore is the slice of the storage layer the service needs.
type RecordStore interface {
	GetItem(ctx context.Context, pk, sk string) (storage.Item, error)
	QueryPrefix(ctx context.Context, pk, skPrefix string, limit int32, indexName string, descending bool) ([]storage.Item, error)
	PutItem(ctx context.Context, item storage.Item) error
	DeleteItem(ctx context.Context, pk, sk string) error
}

// Notifier publishes a message to the after-IDP queue.
type Notifier interface {
	Publish(ctx context.Context, payload any, attributes map[string]string) error
}

// AssetSigner mints time-limited read URLs for stored assets.
type AssetSigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Service exposes read, versioned-merge patch and delete over document records.
type Service struct {
	store    RecordStore
	notifier Notifier
	signer   AssetSigner
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewService wires the record service.
func NewService(store RecordStore, notifier Notifier, signer AssetSigner, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		signer:   signer,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// GetByID resolves the latest version of a document and attaches a presigned
// read URL for its source asset. Returns (nil, nil) when the document does
// not exist; callers branch on emptiness, not on error.
func (s *Service) GetByID(ctx context.Context, documentID string) (storage.Item, error) {
	record, err := s.getLatest(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.logger.Debug("document not found", "document_id", documentID)
		return nil, nil
	}

	assetKey, _ := record[AttrSourceAssetKey].(string)
	url, err := s.signer.PresignGet(ctx, assetKey, PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign source asset: %w", err)
	}
	record[AttrPresignedURL] = url
	return record, nil
}

// ListRecent returns the latest documents, most recent first, projected to
// the listing fields. limit <= 0 falls back to DefaultListLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > math.MaxInt32 {
		// the store takes an int32 page limit; an unchecked conversion
		// would wrap negative
		limit = math.MaxInt32
	}

	items, err := s.store.QueryPrefix(ctx, OrderingPartition, OrderingPrefix, int32(limit), OrderingIndex, true)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(items))
	for _, item := range items {
		pk, _ := item[storage.AttrPK].(string)
		name, _ := item[AttrSourceAssetKey].(string)
		status, _ := item[AttrStatus].(string)
		processed, _ := item[AttrLastProcessed].(string)
		summaries = append(summaries, Summary{
			DocumentID:    strings.TrimPrefix(pk, "DOCUMENT#"),
			DocumentName:  name,
			Status:        status,
			LastProcessed: processed,
		})
	}
	s.logger.Info("listed documents", "count", len(summaries))
	return summaries, nil
}

// Patch merges partial data into an existing record and persists the result
// as a full overwrite. Every patch marks the document PAID and bumps
// last_processed; status is not caller-controlled. When notify is true, a
// notification built from the PRE-patch record is published; a publish
// failure does not fail the patch, it only sets Outcome.Warning.
func (s *Service) Patch(ctx context.Context, documentID string, partial map[string]any, notify bool) (Outcome, error) {
	existing, err := s.getLatest(ctx, documentID)
	if err != nil {
		return Outcome{}, err
	}
	if existing == nil {
		s.logger.Info("patch on non-existing document", "document_id", documentID)
		return NotFoundOutcome(), nil
	}

	timestamp := s.nowFunc().UTC().Format(TimestampFormat)

	incoming := MergeShallow(partial, map[string]any{
		AttrStatus:        StatusPaid,
		AttrLastProcessed: timestamp,
	})

	existingData, _ := existing[AttrData].(map[string]any)
	incomingData, _ := incoming[AttrData].(map[string]any)
	incoming[AttrData] = MergeShallow(existingData, incomingData)

	patched := MergeShallow(existing, incoming)
	delete(patched, AttrPresignedURL) // never persist an access grant

	if err := s.store.PutItem(ctx, patched); err != nil {
		return Outcome{}, err
	}

	warning := ""
	if notify {
		sourceKey, _ := existing[AttrSourceAssetKey].(string)
		correlationID, _ := existing[AttrCorrelationID].(string)
		msg := NotificationMessage{
			DocumentID:         documentID,
			S3KeyOriginalAsset: sourceKey,
			CorrelationID:      correlationID,
			Data:               existingData,
		}
		attrs := map[string]string{AttrCorrelationID: correlationID}
		if err := s.notifier.Publish(ctx, msg, attrs); err != nil {
			// Patch success is storage durability, not delivery durability.
			s.logger.Error("notification publish failed", "document_id", documentID, "error", err)
			warning = fmt.Sprintf("notification not delivered: %v", err)
		}
	}

	return Outcome{
		Status:  OutcomeSuccess,
		Message: fmt.Sprintf("Item patched successfully at %s", timestamp),
		Warning: warning,
	}, nil
}

// Delete removes the version-1 slot of an existing document. The ordering
// facet lives on the same item, so the GSI entry disappears with it.
func (s *Service) Delete(ctx context.Context, documentID string) (Outcome, error) {
	existing, err := s.getLatest(ctx, documentID)
	if err != nil {
		return Outcome{}, err
	}
	if existing == nil {
		s.logger.Info("delete on non-existing document", "document_id", documentID)
		return NotFoundOutcome(), nil
	}

	if err := s.store.DeleteItem(ctx, PrimaryKey(documentID), VersionLatest); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Status:  OutcomeSuccess,
		Message: fmt.Sprintf("successfully deleted document with id: %s", documentID),
	}, nil
}

// getLatest fetches the newest version of a document via prefix query,
// limit 1.
func (s *Service) getLatest(ctx context.Context, documentID string) (storage.Item, error) {
	items, err := s.store.QueryPrefix(ctx, PrimaryKey(documentID), VersionPrefix, 1, "", false)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}
