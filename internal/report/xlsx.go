package report

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/invoice-triage/internal/model"
)

var resultColumns = []string{
	"Doc ID",
	"Vendor",
	"Invoice Number",
	"Supplier",
	"Invoice Date",
	"Currency",
	"Total",
	"Confidence",
	"Validation",
	"Outcome",
	"Reason Codes",
	"Category",
	"Priority",
	"Risk",
	"Error",
}

// WriteWorkbook writes the records to an XLSX workbook with a Results sheet
// (one row per document) and a Summary sheet with batch-level counts.
func WriteWorkbook(path string, records []Record) error {
	f := xlsx.NewFile()

	if err := writeResultsSheet(f, records); err != nil {
		return err
	}
	if err := writeSummarySheet(f, records); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}

	return nil
}

func writeResultsSheet(f *xlsx.File, records []Record) error {
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}

	header := sheet.AddRow()
	for _, col := range resultColumns {
		header.AddCell().SetString(col)
	}

	p := message.NewPrinter(language.AmericanEnglish)
	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.DocID)
		row.AddCell().SetString(rec.VendorName)
		row.AddCell().SetString(fieldString(rec, "invoice_number"))
		row.AddCell().SetString(fieldString(rec, "supplier_name"))
		row.AddCell().SetString(fieldString(rec, "invoice_date"))
		row.AddCell().SetString(fieldString(rec, "currency"))
		row.AddCell().SetString(p.Sprintf("$%.2f", rec.TotalAmount()))
		row.AddCell().SetString(strconv.FormatFloat(rec.ConfidenceScore, 'f', 2, 64))
		row.AddCell().SetString(passLabel(rec.ValidationPass))
		row.AddCell().SetString(string(rec.Outcome))
		row.AddCell().SetString(strings.Join(rec.ReasonCodes, ", "))
		if rec.Insight != nil {
			row.AddCell().SetString(string(rec.Insight.Category))
			row.AddCell().SetString(string(rec.Insight.Priority))
			row.AddCell().SetString(string(rec.Insight.RiskLevel))
		} else {
			row.AddCell()
			row.AddCell()
			row.AddCell()
		}
		row.AddCell().SetString(rec.Error)
	}

	return nil
}

func writeSummarySheet(f *xlsx.File, records []Record) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	var autoPost, needsReview, validationPass, failed int
	var totalAmount, totalCost float64
	for _, rec := range records {
		switch rec.Outcome {
		case model.OutcomeAutoPost:
			autoPost++
		case model.OutcomeNeedsReview:
			needsReview++
		}
		if rec.ValidationPass {
			validationPass++
		}
		if rec.Error != "" {
			failed++
		}
		totalAmount += rec.TotalAmount()
		if rec.Insight != nil {
			totalCost += rec.Insight.ProcessingCost
		}
	}

	p := message.NewPrinter(language.AmericanEnglish)
	addSummaryRow(sheet, "Documents", strconv.Itoa(len(records)))
	addSummaryRow(sheet, "Auto-posted", strconv.Itoa(autoPost))
	addSummaryRow(sheet, "Needs review", strconv.Itoa(needsReview))
	addSummaryRow(sheet, "Validation passed", strconv.Itoa(validationPass))
	addSummaryRow(sheet, "Failed runs", strconv.Itoa(failed))
	addSummaryRow(sheet, "Total amount", p.Sprintf("$%.2f", totalAmount))
	addSummaryRow(sheet, "Processing cost", p.Sprintf("$%.4f", totalCost))

	return nil
}

func addSummaryRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetString(value)
}

func fieldString(rec Record, field string) string {
	v, ok := rec.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
