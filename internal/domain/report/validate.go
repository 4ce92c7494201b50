package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bfoproxy/internal/core/apperror"
)

// MinYear is the earliest fiscal year the registry publishes.
const MinYear = 1990

// ValidateYears checks that every year lies in MinYear..current year.
func ValidateYears(years []int, now time.Time) error {
	maxYear := now.Year()
	for _, y := range years {
		if y < MinYear || y > maxYear {
			return apperror.NewValidation(fmt.Sprintf("year %d is out of range %d..%d", y, MinYear, maxYear)).
				WithDetail("field", "term").
				WithDetail("value", y)
		}
	}
	return nil
}

// UniqueYears returns years de-duplicated and sorted ascending.
func UniqueYears(years []int) []int {
	seen := make(map[int]struct{}, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// ParseTerm parses a comma separated list of years such as "2022,2023".
// Every segment must be a year; an empty term or blank segment is rejected.
// Callers that want latest-year mode omit the term instead of passing "".
func ParseTerm(term string) ([]int, error) {
	parts := strings.Split(term, ",")
	years := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("term must be a comma separated list of years, got %q", part)).
				WithDetail("field", "term").
				WithDetail("value", term)
		}
		years = append(years, y)
	}
	return years, nil
}
