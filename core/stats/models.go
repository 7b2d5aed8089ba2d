// Package stats derives per-student analytics from normalized records.
package stats

import "github.com/trezcool/insights/core/ingest"

// AllValue is the facet value selecting everything.
const AllValue = "전체"

type (
	// Radar holds the six competency axes, each in [0, 100].
	Radar struct {
		Achievement int `json:"achievement"`
		Sincerity   int `json:"sincerity"`
		Speed       int `json:"speed"`
		Accuracy    int `json:"accuracy"`
		Stability   int `json:"stability"`
		Volume      int `json:"volume"`
	}

	// Axis is one labeled radar axis, as drawn by charts.
	Axis struct {
		Subject  string `json:"subject"`
		Value    int    `json:"value"`
		FullMark int    `json:"fullMark"`
	}

	Competency struct {
		AvgScore float64 `json:"avgScore"`
		Count    int     `json:"count"`
		Radar    Radar   `json:"radar"`
	}

	StudentAggregate struct {
		Name       string          `json:"name"`
		ClassName  string          `json:"className"`
		Folder     string          `json:"folder"`
		Records    []ingest.Record `json:"records"` // newest first
		CourseList []string        `json:"courseList"`
		AvgScore   float64         `json:"avgScore"`
	}

	TrendPoint struct {
		Date   string  `json:"date"`
		Score  float64 `json:"score"`
		Title  string  `json:"title"`
		Course string  `json:"course"`
	}

	// Comment is the generated teacher comment of a student.
	Comment struct {
		Status string `json:"status"`
		Habit  string `json:"habit"`
	}

	Facets struct {
		Folders []string `json:"folders"`
		Classes []string `json:"classes"`
		Courses []string `json:"courses"`
	}
)

// Axes returns the radar axes in chart order.
func (r Radar) Axes() []Axis {
	return []Axis{
		{Subject: "성취도", Value: r.Achievement, FullMark: 100},
		{Subject: "성실도", Value: r.Sincerity, FullMark: 100},
		{Subject: "학습속도", Value: r.Speed, FullMark: 100},
		{Subject: "정답률", Value: r.Accuracy, FullMark: 100},
		{Subject: "안정성", Value: r.Stability, FullMark: 100},
		{Subject: "학습량", Value: r.Volume, FullMark: 100},
	}
}
