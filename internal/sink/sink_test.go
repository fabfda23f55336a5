package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/table"
)

func sample(t *testing.T) *table.Dataset {
	t.Helper()
	d1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	return table.MustNew(
		table.NewStringColumn("entity", []string{"A", "B"}, nil),
		table.NewDateColumn("date", []time.Time{d1, d2}, nil),
		table.NewFloatColumn("value", []float64{1.5, math.NaN()}),
	)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Parquet ")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)
	assert.Equal(t, ".parquet", f.Ext())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, sample(t)))
	assert.Equal(t, "entity,date,value\nA,2021-01-01,1.5\nB,2021-01-02,\n", buf.String())
}

func TestEncodeCSV_EmptyTableWritesHeader(t *testing.T) {
	d := table.MustNew(table.NewFloatColumn("value", nil))
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, d))
	assert.Equal(t, "value\n", buf.String())
}

func TestEncodeParquet_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeParquet(&buf, sample(t)))

	pf, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(2), tbl.NumRows())
	require.Equal(t, 3, tbl.Schema().NumFields())
	assert.Equal(t, "entity", tbl.Schema().Field(0).Name)
	assert.Equal(t, "date", tbl.Schema().Field(1).Name)
	assert.Equal(t, "value", tbl.Schema().Field(2).Name)
	assert.Equal(t, 1, tbl.Column(2).NullN())
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(b)
	}
	return out
}

func TestDir_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes one file per table", func(t *testing.T) {
		root := t.TempDir()
		s := Dir{Root: root, Name: "report", Format: FormatCSV}

		loc, err := s.Write(ctx, map[string]*table.Dataset{"processed": sample(t), "growth_7d": sample(t)})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "report"), loc)

		files := readDir(t, loc)
		assert.Len(t, files, 2)
		assert.Contains(t, files, "processed.csv")
		assert.Contains(t, files, "growth_7d.csv")

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		require.Len(t, entries, 1, "staging directories must not be left behind")
	})

	t.Run("replaces a previous report", func(t *testing.T) {
		root := t.TempDir()
		s := Dir{Root: root, Name: "report", Format: FormatCSV}

		_, err := s.Write(ctx, map[string]*table.Dataset{"old": sample(t)})
		require.NoError(t, err)
		loc, err := s.Write(ctx, map[string]*table.Dataset{"new": sample(t)})
		require.NoError(t, err)

		files := readDir(t, loc)
		assert.Contains(t, files, "new.csv")
		assert.NotContains(t, files, "old.csv")
	})

	t.Run("failed write keeps the previous report", func(t *testing.T) {
		root := t.TempDir()
		good := Dir{Root: root, Name: "report", Format: FormatCSV}
		loc, err := good.Write(ctx, map[string]*table.Dataset{"processed": sample(t)})
		require.NoError(t, err)
		before := readDir(t, loc)

		bad := Dir{Root: root, Name: "report", Format: Format("xlsx")}
		_, err = bad.Write(ctx, map[string]*table.Dataset{"processed": sample(t)})
		require.Error(t, err)

		assert.Equal(t, before, readDir(t, loc))
		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut string
	puts    []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != "" && path.Base(key) == f.failPut {
		return minio.UploadInfo{}, errors.New("upload refused")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(b)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.objects[bucket+"/"+key] = b
	f.puts = append(f.puts, key)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeObjects) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeObjects) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeObjects) get(t *testing.T, key string) []byte {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	require.True(t, ok, "missing object %s", key)
	return b
}

func (f *fakeObjects) manifest(t *testing.T, key string) Manifest {
	t.Helper()
	var m Manifest
	require.NoError(t, json.Unmarshal(f.get(t, key), &m))
	return m
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestObjectStore_Write(t *testing.T) {
	ctx := context.Background()
	published := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("uploads a version and points LATEST at it", func(t *testing.T) {
		fake := newFakeObjects()
		s := ObjectStore{Client: fake, Bucket: "reports", Prefix: "/covid/", Name: "run", Format: FormatParquet, Now: fixedClock(published)}

		loc, err := s.Write(ctx, map[string]*table.Dataset{"processed": sample(t), "incidence_7d": sample(t)})
		require.NoError(t, err)

		m := fake.manifest(t, "reports/covid/run/LATEST")
		assert.True(t, strings.HasPrefix(m.Version, "20220304T050607Z-"))
		assert.Equal(t, "covid/run/"+m.Version+"/", m.Prefix)
		assert.Equal(t, []string{"incidence_7d.parquet", "processed.parquet"}, m.Tables)
		assert.True(t, published.Equal(m.PublishedAt))
		assert.Equal(t, "s3://reports/"+m.Prefix, loc)

		assert.Equal(t, []string{
			"reports/covid/run/" + m.Version + "/incidence_7d.parquet",
			"reports/covid/run/" + m.Version + "/processed.parquet",
			"reports/covid/run/LATEST",
		}, fake.keys())
		assert.Equal(t, "covid/run/LATEST", fake.puts[len(fake.puts)-1], "manifest is written last")
	})

	t.Run("failed upload publishes nothing", func(t *testing.T) {
		fake := newFakeObjects()
		fake.failPut = "processed.csv"
		s := ObjectStore{Client: fake, Bucket: "reports", Name: "run", Format: FormatCSV}

		_, err := s.Write(ctx, map[string]*table.Dataset{"incidence_7d": sample(t), "processed": sample(t)})
		require.Error(t, err)
		assert.Empty(t, fake.keys(), "uploaded objects are removed")
	})

	t.Run("failure after a good publish keeps the previous report intact", func(t *testing.T) {
		fake := newFakeObjects()
		s := ObjectStore{Client: fake, Bucket: "reports", Name: "run", Format: FormatCSV}

		_, err := s.Write(ctx, map[string]*table.Dataset{"incidence_7d": sample(t), "processed": sample(t)})
		require.NoError(t, err)
		before := fake.manifest(t, "reports/run/LATEST")
		oldIncidence := fake.get(t, "reports/"+before.Prefix+"incidence_7d.csv")
		keysBefore := fake.keys()

		replacement := table.MustNew(table.NewStringColumn("x", []string{"NEW"}, nil))
		fake.failPut = "processed.csv"
		_, err = s.Write(ctx, map[string]*table.Dataset{"incidence_7d": replacement, "processed": replacement})
		require.Error(t, err)

		assert.Equal(t, before, fake.manifest(t, "reports/run/LATEST"))
		assert.Equal(t, oldIncidence, fake.get(t, "reports/"+before.Prefix+"incidence_7d.csv"))
		assert.Equal(t, keysBefore, fake.keys(), "objects of the failed version are removed")
	})

	t.Run("failed manifest write leaves LATEST unchanged", func(t *testing.T) {
		fake := newFakeObjects()
		s := ObjectStore{Client: fake, Bucket: "reports", Name: "run", Format: FormatCSV}

		_, err := s.Write(ctx, map[string]*table.Dataset{"processed": sample(t)})
		require.NoError(t, err)
		before := fake.manifest(t, "reports/run/LATEST")
		keysBefore := fake.keys()

		fake.failPut = LatestKey
		_, err = s.Write(ctx, map[string]*table.Dataset{"processed": sample(t)})
		require.Error(t, err)
		assert.Equal(t, before, fake.manifest(t, "reports/run/LATEST"))
		assert.Equal(t, keysBefore, fake.keys())
	})
}
