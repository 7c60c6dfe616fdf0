// Package report exports dashboard rollups as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/dailywin/backend/internal/aggregator"
	"github.com/xuri/excelize/v2"
)

// ContentType of the exported workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheet = "Producers"

var headers = []interface{}{
	"Producer", "Dials", "Quotes", "Sales", "Appointments",
	"Contact %", "Pitch %", "Conversion %", "Written Premium",
}

// Filename names the export after its range
func Filename(snap aggregator.Snapshot) string {
	return fmt.Sprintf("dailywin-%s_%s.xlsx", snap.Range.StartDate, snap.Range.EndDate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteProducerReport writes one row per producer followed by a Team row
func WriteProducerReport(w io.Writer, snap aggregator.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	var premium float64
	for i, r := range snap.Rows {
		row := []interface{}{
			r.DisplayName(), r.Dials, r.Quotes, r.Sales, r.Appointments,
			round2(r.ContactRate), round2(r.PitchRate), round2(r.ConversionRate), round2(r.WrittenPremium),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		premium += r.WrittenPremium
	}

	t := snap.TeamTotals
	team := []interface{}{
		"Team", t.Dials, t.Quotes, t.Sales, t.Appointments,
		round2(snap.TeamRates.ContactRate), round2(snap.TeamRates.PitchRate), round2(snap.TeamRates.ConversionRate), round2(premium),
	}
	teamRow := len(snap.Rows) + 2
	cell, _ := excelize.CoordinatesToCellName(1, teamRow)
	if err := f.SetSheetRow(sheet, cell, &team); err != nil {
		return fmt.Errorf("write team row: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), teamRow)
	if err := f.SetCellStyle(sheet, cell, end, bold); err != nil {
		return fmt.Errorf("style team row: %w", err)
	}

	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "I", 15)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
