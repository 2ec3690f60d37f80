package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// pdfEpoch pins the creation date recorded in the document info.
var pdfEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// renderPDF lays out the same sections as the text export. Core fonts cover
// cp1252 only; other runes are replaced by the translator.
func renderPDF(v view) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(v.title, true)
	pdf.SetCreator("loqa-minutes", true)
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(v.title), "", "L", false)
	pdf.Ln(4)

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 7, tr(text), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
	}
	for _, s := range v.visibleSections() {
		heading(s.heading)
		for _, item := range s.items {
			pdf.MultiCell(0, 6, tr("- "+item), "", "L", false)
		}
		pdf.Ln(4)
	}
	heading("Transcript")
	for _, line := range v.transcriptLines() {
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
