package dlp

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

// ErrPayloadLeak is returned in strict mode when payload columns look like
// they carry identifying data.
var ErrPayloadLeak = errors.New("identifying data detected in payload")

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Detector struct {
	rules []compiledRule
}

// Finding records which rule types matched a column and how many cells
// matched. Matched values are never kept.
type Finding struct {
	Column string   `json:"column"`
	Types  []string `json:"types"`
	Cells  int      `json:"cells"`
}

type Report struct {
	Findings []Finding `json:"findings,omitempty"`
}

func (r Report) Detected() bool { return len(r.Findings) > 0 }

func (r Report) Err() error {
	if !r.Detected() {
		return nil
	}
	cols := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		cols[i] = fmt.Sprintf("%s(%s)", f.Column, strings.Join(f.Types, ","))
	}
	return fmt.Errorf("%s: %w", strings.Join(cols, " "), ErrPayloadLeak)
}

func NewDetector(cfg RulesConfig) (*Detector, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Detector{rules: compiled}, nil
}

// Scan checks every cell of table except the skipped columns (the label
// column, whose content is ours).
func (d *Detector) Scan(table pseudonym.Table, skip ...string) Report {
	if d == nil {
		return Report{}
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}

	var report Report
	for col, name := range table.Columns {
		if _, ok := skipped[name]; ok {
			continue
		}
		types := make(map[string]struct{})
		cells := 0
		for _, row := range table.Rows {
			if col >= len(row) {
				continue
			}
			if matchTypes(row[col], d.rules, types) {
				cells++
			}
		}
		if cells == 0 {
			continue
		}
		list := make([]string, 0, len(types))
		for t := range types {
			list = append(list, t)
		}
		sort.Strings(list)
		report.Findings = append(report.Findings, Finding{Column: name, Types: list, Cells: cells})
	}
	return report
}

func matchTypes(text string, rules []compiledRule, types map[string]struct{}) bool {
	matched := false
	for _, rule := range rules {
		if rule.re.MatchString(text) {
			types[rule.rule.Type] = struct{}{}
			matched = true
		}
	}
	return matched
}
