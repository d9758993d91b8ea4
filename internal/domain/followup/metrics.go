package followup

import (
	"sort"
	"strings"
)

type Count struct {
	Key   string
	Count int
}

// Metrics summarizes a list of follow-ups for the reports page and the export.
type Metrics struct {
	Total           int
	ByStatus        []Count
	BySection       []Count
	UniqueSections  int
	UniqueReporters int
}

// Summarize counts follow-ups. Statuses keep their canonical order; sections are
// sorted by count then name. Reporters are compared case-insensitively.
func Summarize(items []Followup) Metrics {
	statusCounts := make(map[Status]int, len(Statuses))
	sectionCounts := make(map[string]int)
	reporters := make(map[string]struct{})

	for _, item := range items {
		status := item.Status
		if status == "" {
			status = StatusOpen
		}
		statusCounts[status]++
		if item.Section != "" {
			sectionCounts[item.Section]++
		}
		if reporter := strings.ToLower(strings.TrimSpace(item.ReportedBy)); reporter != "" {
			reporters[reporter] = struct{}{}
		}
	}

	m := Metrics{
		Total:           len(items),
		UniqueSections:  len(sectionCounts),
		UniqueReporters: len(reporters),
	}
	for _, status := range Statuses {
		m.ByStatus = append(m.ByStatus, Count{Key: string(status), Count: statusCounts[status]})
		delete(statusCounts, status)
	}
	// Values written by hand into the sheet.
	var other []string
	for status := range statusCounts {
		other = append(other, string(status))
	}
	sort.Strings(other)
	for _, status := range other {
		m.ByStatus = append(m.ByStatus, Count{Key: status, Count: statusCounts[Status(status)]})
	}

	for section, n := range sectionCounts {
		m.BySection = append(m.BySection, Count{Key: section, Count: n})
	}
	sort.Slice(m.BySection, func(i, j int) bool {
		if m.BySection[i].Count != m.BySection[j].Count {
			return m.BySection[i].Count > m.BySection[j].Count
		}
		return m.BySection[i].Key < m.BySection[j].Key
	})
	return m
}
