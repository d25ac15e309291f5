package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	lvl, err := NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(lvl.Close)
	bdb, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(bdb.Close)
	return map[string]Database{
		"memdb":   NewMemDB(),
		"leveldb": lvl,
		"bolt":    bdb,
	}
}

func TestDatabaseBasicOperations(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			value, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), value)

			ok, err := db.Has([]byte("k"))
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, db.Delete([]byte("k")))
			ok, err = db.Has([]byte("k"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestDatabaseBatchWrite(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			require.Equal(t, 3, batch.Len())
			require.NoError(t, db.Write(batch))

			a, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), a)
			b, err := db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), b)
			_, err = db.Get([]byte("stale"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
	require.Equal(t, []string{"k"}, db.Keys())
}

func TestBoltDBSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	batch := NewBatch()
	batch.Put([]byte("auction"), []byte("open"))
	require.NoError(t, db.Write(batch))
	db.Close()

	reopened, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get([]byte("auction"))
	require.NoError(t, err)
	require.Equal(t, []byte("open"), got)
}
