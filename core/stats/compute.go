package stats

import (
	"math"

	"github.com/trezcool/insights/core/ingest"
)

// speedPlaceholder is reported until solve times are taken into account.
const speedPlaceholder = 80

// Compute returns the competency of a set of records. An empty set yields the zero Competency.
func Compute(records []ingest.Record) Competency {
	n := len(records)
	if n == 0 {
		return Competency{}
	}

	var sum float64
	reviewed := 0
	for _, rec := range records {
		sum += rec.Score
		if hasReview(rec.ReviewTime) {
			reviewed++
		}
	}
	avg := round(sum / float64(n))

	var deviation float64
	for _, rec := range records {
		deviation += math.Abs(rec.Score - float64(avg))
	}
	deviation /= float64(n)

	return Competency{
		AvgScore: float64(avg),
		Count:    n,
		Radar: Radar{
			Achievement: avg,
			Sincerity:   min(100, round(float64(reviewed)/float64(n)*100)+10),
			Speed:       speedPlaceholder,
			Accuracy:    avg,
			Stability:   max(0, min(100, 100-round(deviation*2))),
			Volume:      min(100, n*10),
		},
	}
}

func hasReview(reviewTime string) bool {
	switch reviewTime {
	case "", "-", "0분":
		return false
	}
	return true
}

// round rounds half up.
func round(f float64) int {
	return int(math.Floor(f + 0.5))
}
