package kvstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	sq, err := New("sqlite", map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "kv.db"),
	})
	require.NoError(t, err)
	mem, err := New("memory", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sq.Close()
		_ = mem.Close()
	})
	return map[string]Store{"sqlite": sq, "memory": mem}
}

func scanKeys(t *testing.T, s Store, prefix string) []string {
	var keys []string
	err := s.Scan(context.Background(), prefix, func(key string, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	return keys
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(ctx, "a/1", []byte("one")))
			require.NoError(t, s.Set(ctx, "a/1", []byte("uno")))
			v, ok, err := s.Get(ctx, "a/1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("uno"), v)

			require.NoError(t, s.Remove(ctx, "a/1"))
			_, ok, err = s.Get(ctx, "a/1")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStoreScanIsPrefixScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"u/b/3", "u/a/2", "u/a/1", "u/ab/9", "v/a/1"} {
				require.NoError(t, s.Set(ctx, k, []byte(k)))
			}
			require.Equal(t, []string{"u/a/1", "u/a/2"}, scanKeys(t, s, "u/a/"))
			require.Len(t, scanKeys(t, s, ""), 5)

			n, err := s.RemovePrefix(ctx, "u/a/")
			require.NoError(t, err)
			require.Equal(t, 2, n)
			require.Equal(t, []string{"u/ab/9", "u/b/3"}, scanKeys(t, s, "u/"))
		})
	}
}

func TestStoreScanCallbackMayWrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "k/1", []byte("x")))
			err := s.Scan(ctx, "k/", func(key string, value []byte) error {
				return s.Set(ctx, key+"-copy", value)
			})
			require.NoError(t, err)
			_, ok, err := s.Get(ctx, "k/1-copy")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestStoreConcurrentSetDistinctKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := fmt.Sprintf("c/%02d", i)
					require.NoError(t, s.Set(ctx, key, []byte(key)))
				}(i)
			}
			wg.Wait()
			keys := scanKeys(t, s, "c/")
			require.Len(t, keys, 20)
			require.Equal(t, "c/00", keys[0])
		})
	}
}

func TestSqliteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	s, err := OpenSqlite(path, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = OpenSqlite(path, 0, 0)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestSqliteReadsDoNotWaitForOpenWrite(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSqlite(filepath.Join(t.TempDir(), "kv.db"), 0, 0)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Set(ctx, "u/alice/1", []byte("one")))

	tx, err := s.(*sqliteStore).db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO kv_entries (kv_key, kv_value) VALUES (?, ?)", "u/bob/1", []byte("pending"))
	require.NoError(t, err)

	done := make(chan []string, 1)
	go func() {
		var keys []string
		_ = s.Scan(ctx, "u/", func(key string, value []byte) error {
			keys = append(keys, key)
			return nil
		})
		done <- keys
	}()
	select {
	case keys := <-done:
		require.Equal(t, []string{"u/alice/1"}, keys)
	case <-time.After(2 * time.Second):
		t.Fatal("scan blocked behind an open write transaction")
	}

	v, ok, err := s.Get(ctx, "u/alice/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("one"), v)
	require.NoError(t, tx.Commit())

	_, ok, err = s.Get(ctx, "u/bob/1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, "u/b", PrefixEnd("u/a"))
	require.Equal(t, "b", PrefixEnd("a\xff"))
	require.Equal(t, "", PrefixEnd("\xff\xff"))
	require.Equal(t, "", PrefixEnd(""))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New("redis", nil)
	require.Error(t, err)
	_, err = New("", nil)
	require.Error(t, err)
	_, err = New("sqlite", map[string]interface{}{})
	require.Error(t, err)
}
