package report

import (
	"bytes"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/dates"
	"github.com/dailywin/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteProducerReport(t *testing.T) {
	snap := aggregator.Snapshot{
		Range: dates.Range{StartDate: "2026-10-12", EndDate: "2026-10-18"},
		Rows: []types.ProducerRow{
			{Producer: types.Producer{ID: "u1", FirstName: null.StringFrom("Ann"), LastName: null.StringFrom("Lee")},
				Dials: 40, Quotes: 3, Sales: 1, Appointments: 2, ContactRate: 37.5, PitchRate: 26.666666, ConversionRate: 25, WrittenPremium: 1200},
			{Producer: types.Producer{ID: "u2"}, Dials: 10},
		},
		TeamTotals: types.Totals{Dials: 50, Quotes: 3, Sales: 1, Appointments: 2},
		TeamRates:  aggregator.Rates{ContactRate: 30},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProducerReport(&buf, snap))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Producer", "Dials", "Quotes", "Sales", "Appointments", "Contact %", "Pitch %", "Conversion %", "Written Premium"}, rows[0])
	assert.Equal(t, "Ann Lee", rows[1][0])
	assert.Equal(t, "40", rows[1][1])
	assert.Equal(t, "26.67", rows[1][6])
	assert.Equal(t, "Unknown", rows[2][0])
	assert.Equal(t, "Team", rows[3][0])
	assert.Equal(t, "50", rows[3][1])
	assert.Equal(t, "1200", rows[3][8])

	styleID, err := f.GetCellStyle(sheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
}

func TestFilename(t *testing.T) {
	snap := aggregator.Snapshot{Range: dates.Range{StartDate: "2026-10-01", EndDate: "2026-10-31"}}
	assert.Equal(t, "dailywin-2026-10-01_2026-10-31.xlsx", Filename(snap))
}
