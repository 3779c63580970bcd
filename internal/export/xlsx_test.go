package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/benchmark-cli/internal/model"
)

func TestWriteComparison(t *testing.T) {
	conf := 0.85
	result := &model.ComparisonResult{
		Date:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Product: "cards",
		Note:    "weekly run",
		Data: map[string]map[string]bool{
			"sber": {"cashback": true, "grace": false},
			"alfa": {"cashback": false, "grace": false},
		},
		Confidence: map[string]float64{"sber.cashback": conf},
		Sources: []model.Source{
			{Name: "Banki.ru", URL: "https://banki.ru", Description: "Aggregator"},
		},
	}
	banks := []model.Bank{
		{ID: "sber", Name: "Sberbank"},
		{ID: "alfa", Name: "Alfa-Bank"},
	}
	criteria := []model.Criterion{
		{ID: "cashback", Name: "Cashback"},
		{ID: "grace", Name: "Grace period"},
	}

	path := filepath.Join(t.TempDir(), "comparison.xlsx")
	require.NoError(t, WriteComparison(result, banks, criteria, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet["Comparison"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 5)

	header := sheet.Rows[2]
	assert.Equal(t, "Criterion", header.Cells[0].String())
	assert.Equal(t, "Sberbank", header.Cells[1].String())
	assert.Equal(t, "Alfa-Bank", header.Cells[2].String())

	cashback := sheet.Rows[3]
	assert.Equal(t, "Cashback", cashback.Cells[0].String())
	assert.Equal(t, "Yes (0.85)", cashback.Cells[1].String())
	assert.Equal(t, "No", cashback.Cells[2].String())

	grace := sheet.Rows[4]
	assert.Equal(t, "No", grace.Cells[1].String())

	sources, ok := f.Sheet["Sources"]
	require.True(t, ok)
	require.Len(t, sources.Rows, 2)
	assert.Equal(t, "https://banki.ru", sources.Rows[1].Cells[1].String())
}

func TestWriteComparisonMissingPair(t *testing.T) {
	result := &model.ComparisonResult{
		Date:    time.Now(),
		Product: "deposits",
		Data:    map[string]map[string]bool{},
	}
	banks := []model.Bank{{ID: "vtb", Name: "VTB"}}
	criteria := []model.Criterion{{ID: "rate", Name: "Rate"}}

	path := filepath.Join(t.TempDir(), "sparse.xlsx")
	require.NoError(t, WriteComparison(result, banks, criteria, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheet["Comparison"]
	assert.Equal(t, "No", sheet.Rows[3].Cells[1].String())
}
