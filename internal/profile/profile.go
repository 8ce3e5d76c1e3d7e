// Package profile persists confirmed column mappings per tenant and header
// shape so a known file layout is recognized on later uploads.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation and lookup errors.
var (
	ErrNotFound    = errors.New("format profile not found")
	ErrNilContext  = errors.New("context cannot be nil")
	ErrEmptyTenant = errors.New("tenant id cannot be empty")
	ErrNoHeaders   = errors.New("header labels cannot be empty")
)

// FormatProfile is a tenant-scoped, fingerprint-keyed record of confirmed
// column mappings.
type FormatProfile struct {
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastUsed     time.Time         `json:"last_used"`
	Mappings     map[string]string `json:"mappings"`
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Fingerprint  string            `json:"fingerprint"`
	HeaderLabels []string          `json:"header_labels"`
	UsageCount   int               `json:"usage_count"`
}

// Store reads and writes format profiles. Save is an upsert on
// (tenant, fingerprint) that replaces all previous mappings; concurrent
// saves of the same key are last-write-wins.
type Store interface {
	Lookup(ctx context.Context, tenantID string, labels []string) (*FormatProfile, error)
	Save(ctx context.Context, tenantID string, labels []string, mappings map[string]string) (*FormatProfile, error)
	List(ctx context.Context, tenantID string) ([]FormatProfile, error)
}

// discardedTargets are mapping targets that mean "do not learn this column".
var discardedTargets = map[string]struct{}{
	"unknown": {},
	"ignore":  {},
	"不明":      {},
	"無視する":    {},
}

const customPrefix = "custom:"

// FilterMappings drops discarded and empty targets and strips the custom:
// prefix from free-form targets.
func FilterMappings(mappings map[string]string) map[string]string {
	out := make(map[string]string, len(mappings))
	for source, target := range mappings {
		if _, skip := discardedTargets[target]; skip || target == "" {
			continue
		}
		if strings.HasPrefix(target, customPrefix) {
			target = strings.TrimSpace(strings.TrimPrefix(target, customPrefix))
		}
		if target == "" {
			continue
		}
		out[source] = target
	}
	return out
}

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateKey(ctx context.Context, tenantID string, labels []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(tenantID) == "" {
		return ErrEmptyTenant
	}
	if len(labels) == 0 {
		return fmt.Errorf("%w: got %d labels", ErrNoHeaders, len(labels))
	}
	return nil
}

func copyMappings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
