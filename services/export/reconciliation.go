package exportsvc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/simchatzion/ledger/core/cleaning"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var texts = map[string]map[string]string{
	cleaning.LangHebrew: {
		"headers":  "מספר תיק|משפחה|ילד/ה|עיר|טלפון|אימייל|סכום (₪)|סטטוס תשלום|מצב",
		"paid":     "שולם",
		"missing":  "חסר",
		"urgent":   "חסר אחרי ה-15",
		"total":    "סה\"כ",
		"families": "משפחות",
	},
	cleaning.LangEnglish: {
		"headers":  "Case #|Family|Child|City|Phone|Email|Amount (ILS)|Payment status|State",
		"paid":     "Paid",
		"missing":  "Missing",
		"urgent":   "Missing after the 15th",
		"total":    "Total",
		"families": "Families",
	},
}

// Filename returns the download name of the month's reconciliation workbook.
func Filename(month cleaning.Month) string {
	return fmt.Sprintf("cleaning_reconciliation_%04d_%02d.xlsx", month.Year, int(month.Month))
}

// WriteReconciliation writes the report as an xlsx workbook: one row per active family, missing payments first.
// Hebrew workbooks are right-to-left.
func WriteReconciliation(w io.Writer, rep cleaning.ReconciliationReport, lang string) error {
	lang = cleaning.NormalizeLang(lang)
	txt := texts[lang]

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := rep.Month.Label(lang)
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	rtl := lang == cleaning.LangHebrew
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return errors.Wrap(err, "setting sheet view")
	}

	header := make([]interface{}, 0, 9)
	for _, h := range strings.Split(txt["headers"], "|") {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, bold)
	}

	row := 2
	writeFamily := func(fam cleaning.Family, state string) error {
		values := []interface{}{
			fam.CaseNumber,
			fam.FamilyName,
			fam.ChildName,
			fam.City.String,
			fam.ContactPhone.String,
			fam.ContactEmail.String,
			nil,
			nil,
			state,
		}
		if p := fam.ExistingPayment; p != nil {
			amount, _ := p.AmountILS.Float64()
			values[6] = amount
			values[7] = string(p.Status)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
		return nil
	}

	for _, fam := range rep.MissingPayment {
		state := txt["missing"]
		if cleaning.IsUrgent(fam, rep.ReferenceDate) && rep.Month.Contains(rep.ReferenceDate) {
			state = txt["urgent"]
		}
		if err := writeFamily(fam, state); err != nil {
			return errors.Wrap(err, "writing missing payment row")
		}
	}
	for _, fam := range rep.HasPayment {
		if err := writeFamily(fam, txt["paid"]); err != nil {
			return errors.Wrap(err, "writing payment row")
		}
	}

	// totals
	if row > 2 {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row+1), txt["total"])
		_ = f.SetCellFormula(sheet, fmt.Sprintf("G%d", row+1), fmt.Sprintf("SUM(G2:G%d)", row-1))
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row+1), txt["families"])
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row+1), row-2)
	}
	_ = f.SetColWidth(sheet, "B", "F", 20)
	_ = f.SetColWidth(sheet, "H", "I", 22)

	return errors.Wrap(f.Write(w), "writing workbook")
}

// Reconciliation returns the report as an xlsx workbook, i.e. for an email attachment.
func Reconciliation(rep cleaning.ReconciliationReport, lang string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := WriteReconciliation(buf, rep, lang); err != nil {
		return nil, err
	}
	return buf, nil
}
