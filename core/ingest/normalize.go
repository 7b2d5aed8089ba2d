package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
)

// ErrNoName is returned for records whose student name cannot be resolved.
var ErrNoName = errors.New("record has no student name")

var (
	bracketTagRegex = regexp.MustCompile(`\[[^\]]*\]`)
	parenRegex      = regexp.MustCompile(`\(.*\)`)
	numberRegex     = regexp.MustCompile(`[^0-9.]`)
	spacesRegex     = regexp.MustCompile(`\s+`)
)

// Normalizer builds Records out of RawRecords following a Rules table.
type Normalizer struct {
	rules *Rules
	dates *DateChain
	now   func() time.Time
}

// NewNormalizer returns a Normalizer using rules, or the default rules when nil.
func NewNormalizer(rules *Rules) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Normalizer{
		rules: rules,
		dates: DefaultDateChain(),
		now:   time.Now,
	}
}

func (n *Normalizer) Rules() *Rules {
	return n.rules
}

// Normalize builds the Record of raw. A failure while normalizing one record is returned as an error, never
// propagated as a panic.
func (n *Normalizer) Normalize(raw RawRecord) (rec Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec = Record{}
			err = errors.Errorf("normalizing record of %s: %v", raw.SourceFile, p)
		}
	}()

	name := n.name(raw)
	if name == "" {
		return Record{}, ErrNoName
	}

	rawTitle, _ := n.find(raw, n.rules.Title)
	if strings.TrimSpace(rawTitle) == "" {
		rawTitle = n.rules.Defaults.Title
	}

	status, _ := n.find(raw, n.rules.Status)
	if status == "" {
		status = n.rules.Defaults.Status
	}

	solveTime, _ := n.find(raw, n.rules.SolveTime)
	reviewTime, _ := n.find(raw, n.rules.ReviewTime)
	className, folder := n.classAndFolder(raw.FolderPath)
	date := n.date(raw)

	return Record{
		Name:       name,
		Folder:     folder,
		ClassName:  className,
		Title:      n.RefineTitle(rawTitle),
		Course:     n.rules.Course(rawTitle),
		Score:      n.score(raw),
		Status:     status,
		SolveTime:  FormatDuration(solveTime),
		ReviewTime: FormatDuration(reviewTime),
		Date:       date.Time,
		DateStr:    date.Str,
		DateValid:  date.Valid,
		Raw:        raw.Fields,
		SourceFile: raw.SourceFile,
		FolderPath: raw.FolderPath,
	}, nil
}

// find returns the value of the first header matching the keywords.
func (n *Normalizer) find(raw RawRecord, keywords []string) (string, bool) {
	return raw.Get(func(key string) bool { return MatchKey(key, keywords) })
}

// name is the first non-blank name column, else the file name up to its first '_'.
func (n *Normalizer) name(raw RawRecord) string {
	for _, k := range raw.Order {
		if MatchKey(k, n.rules.Name) {
			if v := core.NormalizeName(raw.Fields[k]); v != "" {
				return v
			}
		}
	}
	base := strings.TrimSuffix(raw.SourceFile, filepath.Ext(raw.SourceFile))
	return core.NormalizeName(strings.SplitN(base, "_", 2)[0])
}

// score prefers a positive percentage column over the raw score column.
func (n *Normalizer) score(raw RawRecord) float64 {
	percent, _ := n.find(raw, n.rules.Percent)
	if p := SafeNumber(percent); p > 0 {
		return p
	}
	score, _ := n.find(raw, n.rules.Score)
	return SafeNumber(score)
}

// date parses the date column. When it is missing or unparseable, every value of the row is tried in header
// order, only accepting dates after 2000.
func (n *Normalizer) date(raw RawRecord) DateInfo {
	now := n.now()
	val, _ := n.find(raw, n.rules.Date)
	info := n.dates.Parse(val, now)
	if info.Valid {
		return info
	}
	for _, v := range raw.Values() {
		if check := n.dates.Parse(v, now); check.Valid && check.Time.Year() > 2000 {
			return check
		}
	}
	return info
}

// RefineTitle drops bracketed tags and the parenthesized part of a title.
func (n *Normalizer) RefineTitle(rawTitle string) string {
	t := bracketTagRegex.ReplaceAllString(rawTitle, " ")
	t = strings.NewReplacer("[", " ", "]", " ").Replace(t)
	t = parenRegex.ReplaceAllString(t, "")
	t = strings.TrimSpace(spacesRegex.ReplaceAllString(t, " "))
	if t == "" {
		return n.rules.Defaults.Untitled
	}
	return t
}

// classAndFolder reads the class (deepest directory) and the folder (top directory) out of a relative path.
func (n *Normalizer) classAndFolder(folderPath string) (string, string) {
	var parts []string
	for _, p := range strings.Split(strings.ReplaceAll(folderPath, `\`, "/"), "/") {
		if p = core.NormalizeName(p); p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return n.rules.Defaults.ClassName, n.rules.Defaults.Folder
	}
	return parts[len(parts)-1], parts[0]
}

// SafeNumber keeps the digits and dots of s and parses the result, 0 when it is not a number.
func SafeNumber(s string) float64 {
	f, err := strconv.ParseFloat(numberRegex.ReplaceAllString(s, ""), 64)
	if err != nil {
		return 0
	}
	return f
}

// FormatDuration normalizes a solve/review duration:
//   - "-" for empty, zero, dashed or overlong values
//   - "N분" becomes "HH:MM:00"
//   - a bare number N becomes "N분"
//   - anything else is kept as is
func FormatDuration(val string) string {
	s := strings.TrimSpace(val)
	if s == "" || s == "0" || s == "00:00" || strings.Contains(s, "-") || utf8.RuneCountInString(s) > 10 {
		return "-"
	}
	if strings.HasSuffix(s, "분") {
		if mins, ok := leadingInt(strings.TrimSpace(strings.Replace(s, "분", "", 1))); ok {
			return fmt.Sprintf("%02d:%02d:00", mins/60, mins%60)
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == f {
		return s + "분"
	}
	return s
}

func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	return v, err == nil
}
