package analysis

import (
	"fmt"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
)

// SelectKeyResults narrows krs to the requested codes, keeping sheet order.
// No codes selects every key result.
func SelectKeyResults(krs []models.KeyResult, codes []string) ([]models.KeyResult, error) {
	if len(codes) == 0 {
		return krs, nil
	}
	known := make(map[string]struct{}, len(krs))
	for _, kr := range krs {
		known[kr.Code] = struct{}{}
	}

	want := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, ok := known[code]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKR, code)
		}
		want[code] = struct{}{}
	}

	out := make([]models.KeyResult, 0, len(want))
	for _, kr := range krs {
		if _, ok := want[kr.Code]; ok {
			out = append(out, kr)
		}
	}
	return out, nil
}
