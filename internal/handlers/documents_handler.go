package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/validation"
)

// HandlerConfig groups dependencies for the documents handlers.
type HandlerConfig struct {
	Service *documents.Service
	Logger  *slog.Logger
}

// RegisterDocumentRoutes registers the documents API under /api/v1.
// Documents are created only by the ingest pipeline; the API reads, patches
// and deletes them.
func RegisterDocumentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	api := r.Group("/api/v1")

	api.GET("/documents", func(c *gin.Context) {
		ctx, logger := requestScope(c, cfg.Logger)

		var q validation.ListDocumentsQuery
		if err := validation.BindQueryAndValidate(c, &q, v); err != nil {
			// BindQueryAndValidate already wrote a 400
			return
		}

		result, err := cfg.Service.ListRecent(ctx, q.Limit)
		if err != nil {
			logger.Error("list documents failed", "error", err)
			c.JSON(http.StatusInternalServerError, documents.Outcome{Status: documents.OutcomeError, Message: "failed to list documents"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	api.GET("/documents/:document_id", func(c *gin.Context) {
		ctx, logger := requestScope(c, cfg.Logger)
		documentID := c.Param("document_id")

		record, err := cfg.Service.GetByID(ctx, documentID)
		if err != nil {
			logger.Error("get document failed", "document_id", documentID, "error", err)
			c.JSON(http.StatusInternalServerError, documents.Outcome{Status: documents.OutcomeError, Message: "failed to read document"})
			return
		}
		if record == nil {
			// Absence is an empty object, not an error; callers branch on emptiness.
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	api.PATCH("/documents/:document_id", func(c *gin.Context) {
		ctx, logger := requestScope(c, cfg.Logger)
		documentID := c.Param("document_id")

		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, documents.Outcome{Status: documents.OutcomeError, Message: err.Error()})
			return
		}
		if err := validation.ValidatePatchPayload(body); err != nil {
			c.JSON(http.StatusBadRequest, documents.Outcome{Status: documents.OutcomeError, Message: err.Error()})
			return
		}

		outcome, err := cfg.Service.Patch(ctx, documentID, body, true)
		if err != nil {
			logger.Error("patch document failed", "document_id", documentID, "error", err)
			c.JSON(http.StatusInternalServerError, documents.Outcome{Status: documents.OutcomeError, Message: "failed to patch document"})
			return
		}
		c.JSON(outcomeStatus(outcome), outcome)
	})

	api.DELETE("/documents/:document_id", func(c *gin.Context) {
		ctx, logger := requestScope(c, cfg.Logger)
		documentID := c.Param("document_id")

		outcome, err := cfg.Service.Delete(ctx, documentID)
		if err != nil {
			logger.Error("delete document failed", "document_id", documentID, "error", err)
			c.JSON(http.StatusInternalServerError, documents.Outcome{Status: documents.OutcomeError, Message: "failed to delete document"})
			return
		}
		c.JSON(outcomeStatus(outcome), outcome)
	})
}

// requestScope resolves the caller-supplied correlation id (or mints one),
// reflects it on the response and returns a logger carrying it.
func requestScope(c *gin.Context, logger *slog.Logger) (context.Context, *slog.Logger) {
	correlationID := c.GetHeader("Correlation-Id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	c.Header("Correlation-Id", correlationID)
	return c.Request.Context(), logger.With("correlation_id", correlationID)
}

func outcomeStatus(outcome documents.Outcome) int {
	if outcome.Status == documents.OutcomeError {
		return http.StatusNotFound
	}
	return http.StatusOK
}
