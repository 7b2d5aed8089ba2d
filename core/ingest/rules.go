package ingest

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Rules is the keyword table driving header detection and field extraction.
	// Every list is ordered; a header matches a keyword when its upper-cased, whitespace-free form contains the
	// upper-cased, whitespace-free keyword.
	Rules struct {
		Header     []string     `yaml:"header"`
		Name       []string     `yaml:"name"`
		Percent    []string     `yaml:"percent"`
		Score      []string     `yaml:"score"`
		Date       []string     `yaml:"date"`
		Title      []string     `yaml:"title"`
		SolveTime  []string     `yaml:"solveTime"`
		ReviewTime []string     `yaml:"reviewTime"`
		Status     []string     `yaml:"status"`
		Courses    []CourseRule `yaml:"courses"`
		Defaults   Defaults     `yaml:"defaults"`
	}

	// CourseRule maps a title to a course. Pattern is matched against the upper-cased title (whitespace-free when
	// Compact is set) and Course may reference its groups ($1); Contains are matched, upper-cased and whitespace-free, against
	// the upper-cased, whitespace-free title.
	CourseRule struct {
		Course   string   `yaml:"course"`
		Pattern  string   `yaml:"pattern,omitempty"`
		Compact  bool     `yaml:"compact,omitempty"`
		Contains []string `yaml:"contains,omitempty"`

		re *regexp.Regexp
	}

	Defaults struct {
		Title     string `yaml:"title"`     // raw title when no title column
		Untitled  string `yaml:"untitled"`  // refined title when nothing is left
		Course    string `yaml:"course"`
		Status    string `yaml:"status"`
		ClassName string `yaml:"className"`
		Folder    string `yaml:"folder"`
	}
)

// DefaultRules returns the built-in Korean/English rule table.
func DefaultRules() *Rules {
	r := &Rules{
		Header:     []string{"이름", "Name", "학생", "성명", "담당", "점수", "Score", "과제", "Title", "날짜"},
		Name:       []string{"이름", "Name", "학생", "성명"},
		Percent:    []string{"환산", "백분율", "Percent", "취득"},
		Score:      []string{"점수", "Score", "맞은", "정답"},
		Date:       []string{"날짜", "Date", "Time", "일시", "일자"},
		Title:      []string{"제목", "Title", "단원"},
		SolveTime:  []string{"풀이", "소요", "Duration"},
		ReviewTime: []string{"복습", "Review", "오답"},
		Status:     []string{"상태", "Status"},
		Courses: []CourseRule{
			{Course: "미적분1", Pattern: `미적(분)?[\W_]*1`},
			{Course: "미적분2", Pattern: `미적(분)?[\W_]*2`},
			{Course: "공통수학1", Contains: []string{"공수1", "공통수학1"}},
			{Course: "공통수학2", Contains: []string{"공수2", "공통수학2"}},
			{Course: "미적분", Contains: []string{"미적"}},
			{Course: "확률과통계", Contains: []string{"확통", "확률"}},
			{Course: "기하", Contains: []string{"기하"}},
			{Course: "수학1", Contains: []string{"수1", "수학1"}},
			{Course: "수학2", Contains: []string{"수2", "수학2"}},
			{Course: "대수", Contains: []string{"대수"}},
			{Course: "${1}${2}-${3}", Pattern: `(중|고)(\d)[-.]?(\d)`, Compact: true},
		},
		Defaults: Defaults{
			Title:     "과제",
			Untitled:  "제목 없음",
			Course:    "정규과정",
			Status:    "-",
			ClassName: "공통반",
			Folder:    "기타",
		},
	}
	if err := r.compile(); err != nil {
		panic(err) // built-in patterns are valid
	}
	return r
}

// LoadRules reads a YAML rule file. Lists and defaults missing from the file keep their built-in value.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading rules file")
	}
	return ParseRules(data)
}

// ParseRules parses a YAML rule table over the built-in one.
func ParseRules(data []byte) (*Rules, error) {
	var custom Rules
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, errors.Wrap(err, "decoding rules")
	}

	r := DefaultRules()
	overlay := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	overlay(&r.Header, custom.Header)
	overlay(&r.Name, custom.Name)
	overlay(&r.Percent, custom.Percent)
	overlay(&r.Score, custom.Score)
	overlay(&r.Date, custom.Date)
	overlay(&r.Title, custom.Title)
	overlay(&r.SolveTime, custom.SolveTime)
	overlay(&r.ReviewTime, custom.ReviewTime)
	overlay(&r.Status, custom.Status)
	if len(custom.Courses) > 0 {
		r.Courses = custom.Courses
	}

	setDefault := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	setDefault(&r.Defaults.Title, custom.Defaults.Title)
	setDefault(&r.Defaults.Untitled, custom.Defaults.Untitled)
	setDefault(&r.Defaults.Course, custom.Defaults.Course)
	setDefault(&r.Defaults.Status, custom.Defaults.Status)
	setDefault(&r.Defaults.ClassName, custom.Defaults.ClassName)
	setDefault(&r.Defaults.Folder, custom.Defaults.Folder)

	if err := r.compile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) compile() error {
	for i := range r.Courses {
		cr := &r.Courses[i]
		if cr.Course == "" {
			return errors.Errorf("course rule %d: missing course", i)
		}
		if cr.Pattern == "" {
			if len(cr.Contains) == 0 {
				return errors.Errorf("course rule %q: needs a pattern or substrings", cr.Course)
			}
			continue
		}
		re, err := regexp.Compile(cr.Pattern)
		if err != nil {
			return errors.Wrapf(err, "course rule %q", cr.Course)
		}
		cr.re = re
	}
	return nil
}

// MatchKey reports whether the header key matches any of the keywords.
func MatchKey(key string, keywords []string) bool {
	k := compact(strings.ToUpper(key))
	for _, kw := range keywords {
		kw = compact(strings.ToUpper(kw))
		if kw != "" && strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// Course returns the course of a raw title: the first matching rule wins.
func (r *Rules) Course(rawTitle string) string {
	upper := strings.ToUpper(rawTitle)
	compacted := compact(upper)

	for _, cr := range r.Courses {
		if cr.re != nil {
			subject := upper
			if cr.Compact {
				subject = compacted
			}
			if m := cr.re.FindStringSubmatchIndex(subject); m != nil {
				return string(cr.re.ExpandString(nil, cr.Course, subject, m))
			}
			continue
		}
		for _, s := range cr.Contains {
			if s = compact(strings.ToUpper(s)); s != "" && strings.Contains(compacted, s) {
				return cr.Course
			}
		}
	}
	return r.Defaults.Course
}

// compact removes every whitespace rune.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
