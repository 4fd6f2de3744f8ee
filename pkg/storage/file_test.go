package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/pagination"
	"github.com/onemotre/MapPOI/pkg/poi"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult(n int) harvest.Result {
	q := query.Query{Region: "榕江县", Category: "停车场"}
	records := make([]poi.Record, n)
	for i := range records {
		records[i] = poi.Record{
			Index:         i + 1,
			Name:          "停车场" + string(rune('A'+i)),
			Lng:           108.52,
			Lat:           25.93,
			Province:      "贵州省",
			City:          "黔东南苗族侗族自治州",
			District:      "榕江县",
			Location:      "108.52,25.93",
			CategoryMajor: "交通设施服务",
			CategoryMid:   "停车场",
			CategorySub:   "公共停车场",
			Rating:        poi.DefaultRatingPlaceholder,
			ParkingType:   "地面",
		}
	}
	return harvest.Result{Query: q, Records: records, State: harvest.StateExhausted, Pages: 1}
}

func TestNewFileSink_Validation(t *testing.T) {
	_, err := NewFileSink("", FormatCSV, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewFileSink(t.TempDir(), Format("parquet"), zerolog.Nop())
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}

func TestFileSink_CSV(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, FormatCSV, zerolog.Nop())
	require.NoError(t, err)

	res := sampleResult(3)
	require.NoError(t, sink.Store(context.Background(), res))

	path := filepath.Join(root, "榕江县", "榕江县_停车场.csv")
	assert.Equal(t, path, sink.Path(res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), utf8BOM))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, poi.Columns, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "108.52", rows[1][2])
	assert.Equal(t, "地面", rows[3][12])
}

func TestFileSink_XLSX(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, FormatXLSX, zerolog.Nop())
	require.NoError(t, err)

	res := sampleResult(2)
	require.NoError(t, sink.Store(context.Background(), res))

	f, err := excelize.OpenFile(sink.Path(res))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, poi.Columns, rows[0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "停车场B", rows[2][1])
}

func TestFileSink_PartialResultWritten(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, FormatCSV, zerolog.Nop())
	require.NoError(t, err)

	res := sampleResult(2)
	res.State = harvest.StateAborted
	res.Reason = pagination.AbortCancelled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sink.Store(ctx, res))
	assert.FileExists(t, sink.Path(res))
}

func TestFileSink_ReplacesAndLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, FormatCSV, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, sink.Store(context.Background(), sampleResult(5)))
	require.NoError(t, sink.Store(context.Background(), sampleResult(1)))

	entries, err := os.ReadDir(filepath.Join(root, "榕江县"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(sink.Path(sampleResult(1)))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestFileSink_ErrorCarriesPath(t *testing.T) {
	root := t.TempDir()
	// A file where the region directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(root, "榕江县"), []byte("x"), 0o644))

	sink, err := NewFileSink(root, FormatCSV, zerolog.Nop())
	require.NoError(t, err)

	res := sampleResult(1)
	err = sink.Store(context.Background(), res)
	require.Error(t, err)

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, sink.Path(res), storeErr.Path)
}

func TestFileSink_RefusesPathCollision(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, FormatCSV, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleResult(2)
	first.Query = query.Query{Region: "a b", Category: "c"}
	require.NoError(t, sink.Store(ctx, first))

	// Same query again replaces its own artifact.
	require.NoError(t, sink.Store(ctx, first))

	second := sampleResult(1)
	second.Query = query.Query{Region: "a_b", Category: "c"}
	err = sink.Store(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathCollision))

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, sink.Path(first), serr.Path)

	data, err := os.ReadFile(sink.Path(first))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"), "first query's artifact kept")
}
