package api

import (
	"hash/fnv"
	"time"

	"github.com/sells-group/benchmark-cli/internal/model"
)

// mockComparison builds demo data for frontends pointed at an empty
// database. Values are hashed from the pair so repeated requests agree.
func mockComparison(productID string, banks, criteria []string) *model.ComparisonResult {
	data := map[string]map[string]bool{}
	for _, bank := range banks {
		data[bank] = map[string]bool{}
		for _, criterion := range criteria {
			threshold := uint32(40)
			if bank == "sber" {
				threshold = 60
			}
			data[bank][criterion] = pairHash(bank, criterion)%100 < threshold
		}
	}

	return &model.ComparisonResult{
		Date: time.Now().UTC(),
		Sources: []model.Source{
			{ID: "banki-ru", Name: "Banki.ru", URL: "https://banki.ru"},
			{ID: "sravni-ru", Name: "Sravni.ru", URL: "https://sravni.ru"},
		},
		Data:       data,
		Confidence: map[string]float64{},
		Note:       "Mock data for demonstration (no real data available)",
		Product:    productID,
		IsMock:     true,
	}
}

func pairHash(bank, criterion string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(bank))
	h.Write([]byte{'/'})
	h.Write([]byte(criterion))
	return h.Sum32()
}
