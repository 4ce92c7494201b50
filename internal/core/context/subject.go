// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Subject identifies the organization a request is about.
type Subject struct {
	TaxID          string
	OrganizationID int64
}

type subjectContextKey struct{}

// WithSubject adds Subject to context.
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// GetSubject returns Subject from context.
func GetSubject(ctx context.Context) *Subject {
	if v, ok := ctx.Value(subjectContextKey{}).(*Subject); ok {
		return v
	}
	return nil
}

// GetTaxID returns the tax id of the request subject or empty string.
func GetTaxID(ctx context.Context) string {
	if s := GetSubject(ctx); s != nil {
		return s.TaxID
	}
	return ""
}
