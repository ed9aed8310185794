package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driversUnderTest(t *testing.T) map[string]Driver {
	t.Helper()
	boltDriver, err := OpenBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltDriver.Close() })
	return map[string]Driver{
		"memory": NewMemoryDriver(),
		"bolt":   boltDriver,
	}
}

func TestTreeBasicOperations(t *testing.T) {
	for name, driver := range driversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			tree, err := driver.OpenTree("data")
			require.NoError(t, err)

			require.NoError(t, tree.Insert([]byte("k1"), []byte("v1")))

			v, err := tree.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			missing, err := tree.Get([]byte("nope"))
			require.NoError(t, err)
			assert.Nil(t, missing)

			exists, err := tree.Contains([]byte("k1"))
			require.NoError(t, err)
			assert.True(t, exists)

			empty, err := tree.IsEmpty()
			require.NoError(t, err)
			assert.False(t, empty)

			require.NoError(t, tree.Remove([]byte("k1")))
			exists, err = tree.Contains([]byte("k1"))
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestTreePrefixScan(t *testing.T) {
	for name, driver := range driversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			tree, err := driver.OpenTree("scan")
			require.NoError(t, err)

			require.NoError(t, tree.Insert([]byte("/s1/g1"), []byte("a")))
			require.NoError(t, tree.Insert([]byte("/s1/g2"), []byte("b")))
			require.NoError(t, tree.Insert([]byte("/s2/g1"), []byte("c")))

			var keys []string
			err = tree.ScanPrefix([]byte("/s1/"), func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"/s1/g1", "/s1/g2"}, keys)
		})
	}
}

func TestTreeBatchOperations(t *testing.T) {
	for name, driver := range driversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			tree, err := driver.OpenTree("batch")
			require.NoError(t, err)

			require.NoError(t, tree.BatchInsert([]Entry{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("b"), Value: []byte("2")},
				{Key: []byte("c"), Value: []byte("3")},
			}))

			got, err := tree.BatchGet([][]byte{[]byte("a"), []byte("missing"), []byte("c")})
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), got[0])
			assert.Nil(t, got[1])
			assert.Equal(t, []byte("3"), got[2])

			require.NoError(t, tree.BatchRemove([][]byte{[]byte("a"), []byte("b")}))
			empty, err := tree.IsEmpty()
			require.NoError(t, err)
			assert.False(t, empty)

			require.NoError(t, tree.Clear())
			empty, err = tree.IsEmpty()
			require.NoError(t, err)
			assert.True(t, empty)
		})
	}
}

func TestDriverTreeManagement(t *testing.T) {
	for name, driver := range driversUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := driver.OpenTree("alpha")
			require.NoError(t, err)
			_, err = driver.OpenTree("beta")
			require.NoError(t, err)
			_, err = driver.OpenIndexTree("byname", DefaultIndexTreeOptions())
			require.NoError(t, err)

			trees, err := driver.ListTrees()
			require.NoError(t, err)
			assert.Contains(t, trees, "alpha")
			assert.Contains(t, trees, "beta")
			assert.NotContains(t, trees, "byname")

			indexes, err := driver.ListIndexes()
			require.NoError(t, err)
			assert.Contains(t, indexes, "byname")

			require.NoError(t, driver.DropTree("beta"))
			trees, err = driver.ListTrees()
			require.NoError(t, err)
			assert.NotContains(t, trees, "beta")

			require.NoError(t, driver.DropIndex("byname"))
			indexes, err = driver.ListIndexes()
			require.NoError(t, err)
			assert.NotContains(t, indexes, "byname")
		})
	}
}

func TestTreeStats(t *testing.T) {
	driver := NewMemoryDriver()
	tree, err := driver.OpenTree("stats")
	require.NoError(t, err)
	require.NoError(t, tree.Insert([]byte("key"), []byte("value")))

	stats, err := driver.TreeStats("stats")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, uint64(1), stats.EntryCount)

	absent, err := driver.TreeStats("missing")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestFactoryUnsupportedBackend(t *testing.T) {
	_, err := Open(BackendBadger, t.TempDir())
	assert.True(t, errors.Is(err, ErrNotSupported))
}

func TestParseBackendType(t *testing.T) {
	tests := []struct {
		in      string
		want    BackendType
		wantErr bool
	}{
		{"bolt", BackendBolt, false},
		{"bbolt", BackendBolt, false},
		{"Memory", BackendMemory, false},
		{"badger", BackendBadger, false},
		{"rocksdb", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackendType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	driver, err := OpenBolt(dir)
	require.NoError(t, err)
	tree, err := driver.OpenTree("data")
	require.NoError(t, err)
	require.NoError(t, tree.Insert([]byte("durable"), []byte("yes")))
	require.NoError(t, driver.Close())

	reopened, err := OpenBolt(dir)
	require.NoError(t, err)
	defer reopened.Close()
	tree, err = reopened.OpenTree("data")
	require.NoError(t, err)
	v, err := tree.Get([]byte("durable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}
