package stats

import (
	"sort"
	"strings"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/ingest"
)

// Filter selects records. Empty fields and AllValue match everything; From and To are inclusive YYYY-MM-DD bounds
// and exclude records without a valid date.
type Filter struct {
	Folder    string `query:"folder"`
	Class     string `query:"class"`
	Course    string `query:"course"`
	Search    string `query:"search"`
	From      string `query:"from"`
	To        string `query:"to"`
	ValidOnly bool   `query:"valid_only"`
}

func isAll(v string) bool {
	return v == "" || v == AllValue
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec ingest.Record) bool {
	if !isAll(f.Folder) && rec.Folder != f.Folder {
		return false
	}
	if !isAll(f.Class) && rec.ClassName != f.Class {
		return false
	}
	if !isAll(f.Course) && rec.Course != f.Course {
		return false
	}
	if (f.ValidOnly || f.From != "" || f.To != "") && !rec.DateValid {
		return false
	}
	if f.From != "" && rec.DateStr < f.From {
		return false
	}
	if f.To != "" && rec.DateStr > f.To {
		return false
	}
	if search := core.CleanString(f.Search, true /* lower */); search != "" {
		return strings.Contains(strings.ToLower(rec.Name), search) ||
			strings.Contains(strings.ToLower(rec.ClassName), search) ||
			strings.Contains(strings.ToLower(rec.Title), search) ||
			strings.Contains(strings.ToLower(rec.Course), search)
	}
	return true
}

// Apply returns the records passing the filter, in their original order.
func (f Filter) Apply(records []ingest.Record) []ingest.Record {
	res := make([]ingest.Record, 0)
	for _, rec := range records {
		if f.Match(rec) {
			res = append(res, rec)
		}
	}
	return res
}

// Students groups records by student. Each student keeps its records newest first; students are ordered by
// average score, best first.
func Students(records []ingest.Record) []StudentAggregate {
	index := make(map[string]int)
	var students []StudentAggregate
	for _, rec := range records {
		key := core.NormalizeName(rec.Name)
		i, ok := index[key]
		if !ok {
			i = len(students)
			index[key] = i
			students = append(students, StudentAggregate{Name: key, ClassName: rec.ClassName, Folder: rec.Folder})
		}
		students[i].Records = append(students[i].Records, rec)
	}

	for i := range students {
		s := &students[i]
		SortNewestFirst(s.Records)
		s.CourseList = distinct(s.Records, func(r ingest.Record) string { return r.Course })
		var sum float64
		for _, rec := range s.Records {
			sum += rec.Score
		}
		s.AvgScore = float64(round(sum / float64(len(s.Records))))
	}

	sort.SliceStable(students, func(i, j int) bool {
		return students[i].AvgScore > students[j].AvgScore
	})
	if students == nil {
		return []StudentAggregate{}
	}
	return students
}

// SortNewestFirst sorts records by date, newest first, keeping the order of equal dates.
func SortNewestFirst(records []ingest.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}

// Trend returns the score series of records, oldest first. When limit > 0 only the latest points are kept.
func Trend(records []ingest.Record, limit int) []TrendPoint {
	sorted := make([]ingest.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	points := make([]TrendPoint, 0, len(sorted))
	for _, rec := range sorted {
		points = append(points, TrendPoint{Date: rec.DateStr, Score: rec.Score, Title: rec.Title, Course: rec.Course})
	}
	return points
}

// Folders returns the distinct folders of records, in order of appearance.
func Folders(records []ingest.Record) []string {
	return distinct(records, func(r ingest.Record) string { return r.Folder })
}

// Classes returns the distinct class names of records, in order of appearance.
func Classes(records []ingest.Record) []string {
	return distinct(records, func(r ingest.Record) string { return r.ClassName })
}

// Courses returns the distinct courses of records, in order of appearance.
func Courses(records []ingest.Record) []string {
	return distinct(records, func(r ingest.Record) string { return r.Course })
}

func FacetsOf(records []ingest.Record) Facets {
	return Facets{Folders: Folders(records), Classes: Classes(records), Courses: Courses(records)}
}

func distinct(records []ingest.Record, value func(ingest.Record) string) []string {
	seen := make(map[string]bool)
	res := make([]string, 0)
	for _, rec := range records {
		v := value(rec)
		if !seen[v] {
			seen[v] = true
			res = append(res, v)
		}
	}
	return res
}
