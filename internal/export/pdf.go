package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"expenseflow/internal/models"
)

// pdfColumns are the table columns of the PDF statement, widths in mm.
var pdfColumns = []struct {
	title string
	width float64
}{
	{"ID", 12},
	{"Date", 22},
	{"Category", 32},
	{"Sub-category", 30},
	{"Amount", 22},
	{"Status", 28},
	{"User", 24},
}

// RenderExpensesPDF renders expenses as an A4 statement with a grand total.
func RenderExpensesPDF(title string, expenses []models.Expense, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Expenses: %d", len(expenses)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 9)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(7)

	total := decimal.Zero
	pdf.SetFont("Helvetica", "", 9)
	for i := range expenses {
		e := &expenses[i]
		total = total.Add(e.Amount)
		row := []string{
			fmt.Sprintf("%d", e.ID),
			e.Date.Format(DateLayout),
			categoryName(e),
			subCategoryName(e),
			e.Amount.StringFixed(2),
			string(e.Status),
			username(e),
		}
		for j, col := range pdfColumns {
			align := "L"
			if j == 4 {
				align = "R"
			}
			pdf.CellFormat(col.width, 6, tr(fit(pdf, row[j], col.width)), "1", 0, align, false, 0, "")
		}
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Total: "+total.StringFixed(2))
	pdf.Ln(8)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit truncates s so it fits in a cell of width mm.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(s) <= width-padding {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width-padding {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
