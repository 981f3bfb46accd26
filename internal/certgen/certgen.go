// Package certgen renders the derived certificate PDF for a processed
// document.
package certgen

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

const notFound = "NOT_FOUND"

// Certificate is the content of one rendered certificate.
type Certificate struct {
	Title          string
	ProjectDetails string
	DocumentNumber string
	Amount         string
	DetailsLine    string
	AmountInWords  string
	Date           string
	Issuer         string
	FinalNote      string
	GeneratedAt    time.Time
}

// FromExtractedData maps the extraction payload of a record onto certificate
// fields. Missing fields render as NOT_FOUND rather than failing generation.
func FromExtractedData(documentID string, data map[string]any, generatedAt time.Time) Certificate {
	return Certificate{
		Title:          "Payment Certificate",
		ProjectDetails: fmt.Sprintf("Document: %s", documentID),
		DocumentNumber: stringField(data, "numero", "number"),
		Amount:         stringField(data, "total", "monto", "amount"),
		DetailsLine:    stringField(data, "detalle", "details"),
		AmountInWords:  stringField(data, "valor_en_letras"),
		Date:           stringField(data, "fecha", "date"),
		Issuer:         stringField(data, "nombre_receptor", "nombre_emisor", "nombre"),
		FinalNote:      "This certificate was generated automatically from the extracted document data.",
		GeneratedAt:    generatedAt,
	}
}

// Render typesets the certificate and returns the PDF bytes.
func Render(cert Certificate) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 10, "DOCUFLOW", "", 1, "R", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetXY(70, 10)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, cert.Title, "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 10, "", "", 1, "", false, 0, "")
	pdf.CellFormat(0, 10, cert.ProjectDetails, "", 1, "", false, 0, "")
	pdf.Ln(15)

	pdf.SetFont("Arial", "", 10)
	labeled(pdf, "No.:", cert.DocumentNumber)
	labeled(pdf, "Amount:", cert.Amount)
	pdf.Ln(10)

	pdf.CellFormat(0, 10, cert.DetailsLine, "", 1, "", false, 0, "")
	labeled(pdf, "In words:", cert.AmountInWords)
	labeled(pdf, "Date:", cert.Date)
	labeled(pdf, "In favor of:", cert.Issuer)
	pdf.Ln(10)

	labeled(pdf, "Generated at:", cert.GeneratedAt.UTC().Format(time.RFC3339))
	pdf.Ln(10)

	pdf.MultiCell(0, 10, cert.FinalNote, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func labeled(pdf *fpdf.Fpdf, label, value string) {
	pdf.CellFormat(50, 10, label, "", 0, "", false, 0, "")
	pdf.CellFormat(0, 10, value, "", 1, "", false, 0, "")
}

func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return notFound
}
