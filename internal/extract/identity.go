package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/textract"
	txtypes "github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/docuflow/go-document-idp/internal/aws"
)

// IsIdentityDocument reports whether an object key looks like a scanned
// identity document. Uploads follow the convention of prefixing identity
// scans with "id_" or naming them with "identity".
func IsIdentityDocument(objectKey string) bool {
	base := objectKey
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.ToLower(base)
	return strings.HasPrefix(base, "id_") || strings.Contains(base, "identity")
}

// IdentityAnalyzer runs the secondary structured extraction for identity
// documents. Its raw field map is attached alongside the primary extraction
// result; a failure here fails the whole step.
type IdentityAnalyzer struct {
	textract aws.TextractAPI
}

// NewIdentityAnalyzer returns an analyzer backed by Textract AnalyzeID.
func NewIdentityAnalyzer(tx aws.TextractAPI) *IdentityAnalyzer {
	return &IdentityAnalyzer{textract: tx}
}

// Analyze submits the document bytes and flattens the detected identity
// fields into a type -> value map.
func (a *IdentityAnalyzer) Analyze(ctx context.Context, data []byte) (map[string]any, error) {
	out, err := a.textract.AnalyzeID(ctx, &textract.AnalyzeIDInput{
		DocumentPages: []txtypes.Document{
			{Bytes: data},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze id: %w", err)
	}

	fields := map[string]any{}
	for _, doc := range out.IdentityDocuments {
		for _, f := range doc.IdentityDocumentFields {
			if f.Type == nil || f.Type.Text == nil {
				continue
			}
			value := ""
			if f.ValueDetection != nil && f.ValueDetection.Text != nil {
				value = *f.ValueDetection.Text
			}
			fields[*f.Type.Text] = value
		}
	}
	return fields, nil
}
