package profile

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "profiles.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"sqlite": createTestSQLiteStore(t),
		"memory": NewMemoryStore(),
	}
}

func TestFingerprintOrderInvariance(t *testing.T) {
	labels := []string{"日付", "商品", "実績", "予算", "Store", "amount"}
	base := Fingerprint(labels)

	reversed := make([]string, len(labels))
	for i, l := range labels {
		reversed[len(labels)-1-i] = l
	}
	assert.Equal(t, base, Fingerprint(reversed))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]string(nil), labels...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, base, Fingerprint(shuffled))
	}
	assert.Equal(t, []string{"日付", "商品", "実績", "予算", "Store", "amount"}, labels, "input must not be reordered")
}

func TestFingerprintIsTextSensitive(t *testing.T) {
	assert.NotEqual(t, Fingerprint([]string{"Sales"}), Fingerprint([]string{"sales"}))
	assert.NotEqual(t, Fingerprint([]string{"売上"}), Fingerprint([]string{"売上 "}))
	assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"a", "b", "b"}))
}

func TestDecodeFingerprint(t *testing.T) {
	got, err := DecodeFingerprint(Fingerprint([]string{"b", "a", "日付"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "日付"}, got)

	_, err = DecodeFingerprint("***")
	assert.Error(t, err)
}

func TestFilterMappings(t *testing.T) {
	got := FilterMappings(map[string]string{
		"日付":  "date",
		"メモ":  "ignore",
		"備考":  "無視する",
		"区分":  "不明",
		"X":   "unknown",
		"Y":   "",
		"店舗":  "custom: branch ",
		"空":   "custom:",
		"商品名": "product",
	})
	assert.Equal(t, map[string]string{"日付": "date", "店舗": "branch", "商品名": "product"}, got)
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	labels := []string{"日付", "商品", "実績"}
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.Save(ctx, "acme", labels, map[string]string{"日付": "date", "商品": "product"})
			require.NoError(t, err)

			second, err := s.Save(ctx, "acme", []string{"実績", "日付", "商品"}, map[string]string{"実績": "sales"})
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID, "same fingerprint must reuse the profile")

			got, err := s.Lookup(ctx, "acme", labels)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"実績": "sales"}, got.Mappings)
			assert.Equal(t, []string{"実績", "日付", "商品"}, got.HeaderLabels)
			assert.Equal(t, Fingerprint(labels), got.Fingerprint)

			list, err := s.List(ctx, "acme")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStoreLookupNotFoundAndTenantScope(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Lookup(ctx, "acme", []string{"a", "b"})
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Save(ctx, "acme", []string{"a", "b"}, map[string]string{"a": "date"})
			require.NoError(t, err)

			_, err = s.Lookup(ctx, "other", []string{"a", "b"})
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := s.Lookup(ctx, "acme", []string{"b", "a"})
			require.NoError(t, err)
			assert.Equal(t, "date", got.Mappings["a"])
		})
	}
}

func TestStoreUsageStatistics(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			saved, err := s.Save(ctx, "acme", []string{"a"}, map[string]string{"a": "sales"})
			require.NoError(t, err)
			assert.Equal(t, 1, saved.UsageCount)

			p1, err := s.Lookup(ctx, "acme", []string{"a"})
			require.NoError(t, err)
			p2, err := s.Lookup(ctx, "acme", []string{"a"})
			require.NoError(t, err)
			assert.Equal(t, p1.UsageCount+1, p2.UsageCount)
			assert.False(t, p2.LastUsed.IsZero())
		})
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, " ", []string{"a"}, nil)
			assert.ErrorIs(t, err, ErrEmptyTenant)

			_, err = s.Save(ctx, "acme", nil, nil)
			assert.ErrorIs(t, err, ErrNoHeaders)

			_, err = s.Lookup(ctx, "", []string{"a"})
			assert.ErrorIs(t, err, ErrEmptyTenant)

			//nolint:staticcheck // nil context is what is being validated
			_, err = s.Lookup(nil, "acme", []string{"a"})
			assert.ErrorIs(t, err, ErrNilContext)
		})
	}
}

func TestStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	labels := []string{"日付", "売上"}
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.Save(ctx, "acme", labels, map[string]string{"売上": fmt.Sprintf("field%d", i)})
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.Lookup(ctx, "acme", labels)
			require.NoError(t, err)
			assert.Len(t, got.Mappings, 1, "last write wins, never a merge")
			assert.Regexp(t, `^field\d$`, got.Mappings["売上"])

			list, err := s.List(ctx, "acme")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	store := createTestSQLiteStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestSQLiteSaveDropsDiscardedTargets(t *testing.T) {
	ctx := context.Background()
	store := createTestSQLiteStore(t)
	p, err := store.Save(ctx, "acme", []string{"a", "b", "c"}, map[string]string{"a": "date", "b": "ignore", "c": "custom:region"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "date", "c": "region"}, p.Mappings)

	var rows, columns int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM column_mappings WHERE profile_id = ?`, p.ID).Scan(&rows))
	require.NoError(t, store.db.QueryRow(`SELECT column_count FROM profile_meta WHERE profile_id = ?`, p.ID).Scan(&columns))
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, columns)
}
