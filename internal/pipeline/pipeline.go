// Package pipeline wires header detection, classification, normalization,
// aggregation and the profile store into the three upload entry points.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
	"github.com/KaramelBytes/gridloom-cli/internal/profile"
)

// ErrNoStore is returned by ConfirmMapping when the pipeline has no store.
var ErrNoStore = errors.New("no profile store configured")

// Options tunes a Pipeline. Zero values select package defaults.
type Options struct {
	SampleRows int
	TopN       int
	KeyWidth   int
	// LookupTimeout bounds the profile lookup. Zero waits on ctx alone.
	LookupTimeout time.Duration
}

// Pipeline runs uploads against an optional profile store.
type Pipeline struct {
	store  profile.Store
	logger *slog.Logger
	opts   Options
}

// New returns a Pipeline. store may be nil, in which case classification is
// heuristic only and ConfirmMapping fails with ErrNoStore.
func New(store profile.Store, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SampleRows <= 0 || opts.SampleRows > analysis.ClassifySampleRows {
		opts.SampleRows = analysis.ClassifySampleRows
	}
	return &Pipeline{store: store, logger: logger, opts: opts}
}

// Detection is the result of DetectAndClassify.
type Detection struct {
	Header         analysis.HeaderSpec     `json:"header"`
	Classification analysis.Classification `json:"classification"`
	Profile        *profile.FormatProfile  `json:"profile,omitempty"`
	Kind           analysis.DataKind       `json:"data_kind"`
	Fingerprint    string                  `json:"fingerprint"`
	ProfileHit     bool                    `json:"profile_hit"`
}

type lookupResult struct {
	profile *profile.FormatProfile
	err     error
}

// DetectAndClassify finds the header and classifies every column. The
// profile lookup runs while heuristic classification is computed; on a hit
// the columns are classified again with the learned mappings. Store
// failures are logged and leave ProfileHit false.
func (p *Pipeline) DetectAndClassify(ctx context.Context, grid analysis.Grid, tenantID string) (*Detection, error) {
	header, err := analysis.DetectHeader(grid)
	if err != nil {
		return nil, fmt.Errorf("detect header: %w", err)
	}
	det := &Detection{
		Header:      header,
		Fingerprint: profile.Fingerprint(header.Labels),
	}

	var pending chan lookupResult
	lookupCtx := ctx
	if p.store != nil && tenantID != "" {
		if p.opts.LookupTimeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, p.opts.LookupTimeout)
			defer cancel()
		}
		pending = make(chan lookupResult, 1)
		go func() {
			found, err := p.store.Lookup(lookupCtx, tenantID, header.Labels)
			pending <- lookupResult{profile: found, err: err}
		}()
	}

	sample := sampleRows(grid, header, p.opts.SampleRows)
	det.Classification = analysis.Classify(header, sample, nil)
	det.Kind = analysis.IdentifyDataKind(header.Labels, sample)

	if pending == nil {
		return det, nil
	}
	start := time.Now()
	var res lookupResult
	select {
	case res = <-pending:
	case <-lookupCtx.Done():
		res.err = lookupCtx.Err()
	}
	switch {
	case res.err == nil && res.profile != nil:
		det.Profile = res.profile
		det.ProfileHit = true
		det.Classification = analysis.Classify(header, sample, res.profile.Mappings)
		p.logger.Info("format profile matched",
			"profile_id", res.profile.ID,
			"tenant_id", tenantID,
			"mappings", len(res.profile.Mappings))
	case res.err == nil, errors.Is(res.err, profile.ErrNotFound):
		p.logger.Debug("no format profile", "tenant_id", tenantID, "fingerprint", det.Fingerprint)
	default:
		p.logger.Warn("profile lookup failed, using heuristics", "tenant_id", tenantID, "error", res.err)
	}
	p.logger.Debug("profile lookup finished", "wait", time.Since(start))
	return det, nil
}

// NormalizeAndAggregate normalizes the data rows and aggregates them. Empty
// groupKey or valueColumn select the defaults.
func (p *Pipeline) NormalizeAndAggregate(grid analysis.Grid, header analysis.HeaderSpec, cls analysis.Classification, groupKey, valueColumn string) (*analysis.AggregationResult, error) {
	rows, degraded := analysis.NormalizeRows(grid, header, cls)
	res, err := analysis.Aggregate(rows, header.Labels, cls, analysis.AggregateOptions{
		GroupKey:    groupKey,
		ValueColumn: valueColumn,
		TopN:        p.opts.TopN,
		KeyWidth:    p.opts.KeyWidth,
		Degraded:    degraded,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return res, nil
}

// ConfirmMapping stores the user's label -> field mapping for the header set.
func (p *Pipeline) ConfirmMapping(ctx context.Context, tenantID string, labels []string, mappings map[string]string) error {
	if p.store == nil {
		return ErrNoStore
	}
	saved, err := p.store.Save(ctx, tenantID, labels, mappings)
	if err != nil {
		return fmt.Errorf("save format profile: %w", err)
	}
	p.logger.Info("format profile saved",
		"profile_id", saved.ID,
		"tenant_id", tenantID,
		"mappings", len(saved.Mappings))
	return nil
}

// Analyze runs detection and aggregation and assembles a report.
func (p *Pipeline) Analyze(ctx context.Context, name string, grid analysis.Grid, tenantID, groupKey, valueColumn string) (*analysis.Report, error) {
	det, err := p.DetectAndClassify(ctx, grid, tenantID)
	if err != nil {
		return nil, err
	}
	res, err := p.NormalizeAndAggregate(grid, det.Header, det.Classification, groupKey, valueColumn)
	if err != nil {
		return nil, err
	}
	return det.Report(name, res), nil
}

// Report renders the detection and an aggregation into a report value.
func (d *Detection) Report(name string, res *analysis.AggregationResult) *analysis.Report {
	rep := &analysis.Report{
		Name:           name,
		Kind:           d.Kind,
		Header:         d.Header,
		Classification: d.Classification,
		ProfileHit:     d.ProfileHit,
		Fingerprint:    d.Fingerprint,
		Result:         res,
	}
	if d.Profile != nil {
		rep.ProfileID = d.Profile.ID
	}
	return rep
}

// sampleRows returns up to n non-blank data rows below the header.
func sampleRows(grid analysis.Grid, header analysis.HeaderSpec, n int) []analysis.Row {
	var out []analysis.Row
	for i := header.RowIndex + 1; i < len(grid) && len(out) < n; i++ {
		row := analysis.Row(grid[i])
		blank := true
		for _, c := range row {
			if strings.TrimSpace(analysis.CellText(c)) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	return out
}
