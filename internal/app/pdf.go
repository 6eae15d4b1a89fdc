package app

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/trialharvest/internal/record"
)

// writeRunSummaryPDF renders a compact overview of one harvest: the keyword,
// record counts, and one line per trial. Layout is intentionally simple.
func writeRunSummaryPDF(path, keyword string, recs []record.Record) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Clinical trial harvest", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)

	unprocessed := 0
	for _, r := range recs {
		if r.Unprocessed {
			unprocessed++
		}
	}
	pdf.MultiCell(0, 5, fmt.Sprintf("Keyword: %s", keyword), "", "L", false)
	pdf.MultiCell(0, 5, fmt.Sprintf("Records: %d (%d unprocessed)", len(recs), unprocessed), "", "L", false)
	pdf.Ln(4)

	for i, r := range recs {
		pdf.MultiCell(0, 5, recordLine(i, r), "", "L", false)
	}

	return pdf.OutputFileAndClose(path)
}

// recordLine formats one trial for the overview. Kept to the core fonts'
// character set, so no non-ASCII punctuation.
func recordLine(i int, r record.Record) string {
	title := r.Fields["title"]
	if title == "" {
		title = r.Source.Title
	}
	line := fmt.Sprintf("%d. %s", i+1, title)
	if phase := r.Fields["phase"]; phase != "" {
		line += " - " + phase
	}
	if r.Unprocessed {
		line += " [unprocessed]"
	}
	return line
}
