package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationErrors maps a request field to a human readable problem with its value.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidationPolicy holds the input rules that go beyond required fields.
// The zero value accepts any non-empty name and any deadline.
type ValidationPolicy struct {
	Strict            bool
	MinFullNameLength int
	Now               func() time.Time
}

func (p ValidationPolicy) today() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
