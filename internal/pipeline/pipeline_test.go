package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
	"github.com/KaramelBytes/gridloom-cli/internal/logging"
	"github.com/KaramelBytes/gridloom-cli/internal/profile"
)

func decoratedGrid() analysis.Grid {
	return analysis.Grid{
		{"売上", "", "", ""},
		{"日付", "商品", "", "コード"},
		{"2024-01-01", "りんご", "1,200", "A-1"},
		{"2024-01-01", "みかん", "800", "A-2"},
		{},
		{"2024-01-02", "りんご", "1.5万円", "A-1"},
		{"2024-01-02", "ぶどう", "（300）", "A-3"},
	}
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Lookup(context.Context, string, []string) (*profile.FormatProfile, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Save(context.Context, string, []string, map[string]string) (*profile.FormatProfile, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) List(context.Context, string) ([]profile.FormatProfile, error) {
	return nil, errors.New("connection refused")
}

// blockingStore never answers a lookup until its context ends.
type blockingStore struct{ failingStore }

func (blockingStore) Lookup(ctx context.Context, _ string, _ []string) (*profile.FormatProfile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDetectAndClassifyHeuristics(t *testing.T) {
	p := New(nil, logging.Discard(), Options{})
	det, err := p.DetectAndClassify(context.Background(), decoratedGrid(), "acme")
	require.NoError(t, err)

	assert.Equal(t, 1, det.Header.RowIndex)
	assert.Equal(t, []string{"日付", "商品", "売上", "コード"}, det.Header.Labels)
	assert.False(t, det.ProfileHit)
	assert.Equal(t, analysis.KindSales, det.Kind)
	assert.Equal(t, profile.Fingerprint(det.Header.Labels), det.Fingerprint)

	roles := map[string]analysis.Role{}
	for _, c := range det.Classification.Columns {
		roles[c.Label] = c.Role
	}
	assert.Equal(t, map[string]analysis.Role{
		"日付":  analysis.RoleTemporal,
		"商品":  analysis.RoleCategorical,
		"売上":  analysis.RoleMonetary,
		"コード": analysis.RoleOther,
	}, roles)
}

func TestDetectAndClassifyNoHeader(t *testing.T) {
	p := New(nil, logging.Discard(), Options{})
	_, err := p.DetectAndClassify(context.Background(), analysis.Grid{{1, 2}, {3, 4}}, "acme")
	assert.ErrorIs(t, err, analysis.ErrNoHeaderFound)
}

func TestConfirmThenRecognize(t *testing.T) {
	ctx := context.Background()
	store := profile.NewMemoryStore()
	p := New(store, logging.Discard(), Options{})

	det, err := p.DetectAndClassify(ctx, decoratedGrid(), "acme")
	require.NoError(t, err)
	require.False(t, det.ProfileHit)

	require.NoError(t, p.ConfirmMapping(ctx, "acme", det.Header.Labels, map[string]string{
		"コード": "custom:product",
		"商品":  "ignore",
	}))

	again, err := p.DetectAndClassify(ctx, decoratedGrid(), "acme")
	require.NoError(t, err)
	assert.True(t, again.ProfileHit)
	require.NotNil(t, again.Profile)

	code, ok := again.Classification.Lookup("コード")
	require.True(t, ok)
	assert.Equal(t, analysis.RoleCategorical, code.Role)
	assert.Equal(t, analysis.SourceLearnedProfile, code.Source)
	assert.Equal(t, "product", code.Field)

	item, ok := again.Classification.Lookup("商品")
	require.True(t, ok)
	assert.Equal(t, analysis.SourceKeywordMatch, item.Source, "ignored targets are not learned")

	other, err := p.DetectAndClassify(ctx, decoratedGrid(), "globex")
	require.NoError(t, err)
	assert.False(t, other.ProfileHit, "profiles are tenant scoped")
}

func TestStoreFailureDegradesToHeuristics(t *testing.T) {
	var buf bytes.Buffer
	p := New(failingStore{}, logging.New(&buf, slog.LevelInfo, "text"), Options{})

	det, err := p.DetectAndClassify(context.Background(), decoratedGrid(), "acme")
	require.NoError(t, err)
	assert.False(t, det.ProfileHit)
	assert.Len(t, det.Classification.Columns, 4)
	assert.Contains(t, buf.String(), "profile lookup failed")

	err = p.ConfirmMapping(context.Background(), "acme", det.Header.Labels, map[string]string{"日付": "date"})
	assert.Error(t, err)
}

func TestLookupDoesNotOutliveContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p := New(blockingStore{}, logging.Discard(), Options{})

	det, err := p.DetectAndClassify(ctx, decoratedGrid(), "acme")
	require.NoError(t, err)
	assert.False(t, det.ProfileHit)
	assert.Len(t, det.Classification.Columns, 4)
}

func TestLookupTimeoutBoundsHangingStore(t *testing.T) {
	var buf bytes.Buffer
	p := New(blockingStore{}, logging.New(&buf, slog.LevelInfo, "text"), Options{LookupTimeout: 50 * time.Millisecond})

	start := time.Now()
	det, err := p.DetectAndClassify(context.Background(), decoratedGrid(), "acme")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, det.ProfileHit)
	assert.Len(t, det.Classification.Columns, 4)
	assert.Contains(t, buf.String(), "deadline exceeded")
}

func TestConfirmMappingWithoutStore(t *testing.T) {
	p := New(nil, logging.Discard(), Options{})
	err := p.ConfirmMapping(context.Background(), "acme", []string{"a"}, nil)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestNormalizeAndAggregate(t *testing.T) {
	p := New(nil, logging.Discard(), Options{TopN: 2})
	g := decoratedGrid()
	det, err := p.DetectAndClassify(context.Background(), g, "")
	require.NoError(t, err)

	res, err := p.NormalizeAndAggregate(g, det.Header, det.Classification, "", "")
	require.NoError(t, err)
	assert.Equal(t, "日付", res.GroupKey)
	assert.Equal(t, "売上", res.ValueColumn)
	assert.Equal(t, []analysis.SeriesPoint{{Key: "2024-01-01", Value: 2000}, {Key: "2024-01-02", Value: 14700}}, res.Series)
	assert.Equal(t, []analysis.CategoryTotal{{Name: "りんご", Value: 16200}, {Name: "みかん", Value: 800}}, res.Categories)
	assert.Equal(t, 16700.0, res.Totals["売上"].Sum)
	assert.Equal(t, 4, res.Totals["売上"].Parsed)

	_, err = p.NormalizeAndAggregate(g, det.Header, det.Classification, "missing", "")
	assert.ErrorIs(t, err, analysis.ErrUnknownColumn)

	headerOnly := analysis.Grid{{"日付", "金額"}}
	det, err = p.DetectAndClassify(context.Background(), headerOnly, "")
	require.NoError(t, err)
	_, err = p.NormalizeAndAggregate(headerOnly, det.Header, det.Classification, "", "")
	assert.ErrorIs(t, err, analysis.ErrEmptyDataset)
}

func TestAnalyzeBuildsReport(t *testing.T) {
	p := New(profile.NewMemoryStore(), logging.Discard(), Options{})
	rep, err := p.Analyze(context.Background(), "sales.csv", decoratedGrid(), "acme", "", "")
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", rep.Name)
	assert.Contains(t, rep.Markdown(), "[TOP CATEGORIES] by 商品")
}
