package spech5

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three-scan sample: 1.1 and 25.1 are plain counting scans, 1.2 carries
// three MCA analyzers with three spectra per data row.
const sampleText = `#F /tmp/sf.dat
#E 1455180875
#D Thu Feb 11 09:54:35 2016
#C imaging  User = opid17
#O0 Pslit HGap  MRTSlit UP  MRTSlit DOWN
#O1 Sslit1 VOff  Sslit1 HOff  Sslit1 VGap
#o0 pshg mrtu mrtd
#o2 ss1vo ss1ho ss1vg

#J0 Seconds  IA  ion.mono  Current
#J1 xbpmc2  idgap1  Inorm

#S 1  ascan  ss1vo -4.55687 -0.556875  40 0.2
#D Thu Feb 11 09:55:20 2016
#T 0.2  (Seconds)
#P0 180.005 -0.66875 0.87125
#P1 14.74255 16.197579 12.238283
#N 3
#L MRTSlit UP  second column  3rd_col
-1.23 5.89  8
8.478100E+01  5 1.56
3.14 2.73 -3.14
1.2 2.3 3.4

#S 25  ascan  c3th 1.33245 1.52245  40 0.15
#D Thu Feb 11 10:00:31 2016
#P0 80.005 -1.66875 1.87125
#P1 4.74255 6.197579 2.238283
#N 4
#L column0  column1  col2  col3
0.0 0.1 0.2 0.3
1.0 1.1 1.2 1.3
2.0 2.1 2.2 2.3
3.0 3.1 3.2 3.3

#S 1 aaaaaa
#D Thu Feb 11 10:00:32 2016
#@MCADEV 1
#@MCA %16C
#@CHANN 3 0 2 1
#@CALIB 1 2 3
#N 2
#L uno  duo
1 2
@A 0 1 2
@A 10 9 8
@A 1 1 1.1
3 4
@A 3.1 4 5
@A 7 6 5
@A 1 1 1
5 6
@A 6 7.7 8
@A 4 3 2
@A 1 1 1
`

func openSample(t *testing.T) *File {
	t.Helper()
	f, err := OpenReader(strings.NewReader(sampleText))
	require.NoError(t, err)
	return f
}

func readFloat32s(t *testing.T, f *File, path string) []float32 {
	t.Helper()
	ds, err := f.Dataset(path)
	require.NoError(t, err, path)
	v, err := ds.Read()
	require.NoError(t, err, path)
	vals, ok := v.([]float32)
	require.True(t, ok, "%s should be []float32, got %T", path, v)
	return vals
}

func readString(t *testing.T, f *File, path string) string {
	t.Helper()
	ds, err := f.Dataset(path)
	require.NoError(t, err, path)
	v, err := ds.Read()
	require.NoError(t, err, path)
	s, ok := v.(string)
	require.True(t, ok, "%s should be string, got %T", path, v)
	return s
}

func TestContains_File(t *testing.T) {
	f := openSample(t)

	assert.True(t, f.Contains("/1.2/measurement"))
	assert.True(t, f.Contains("/25.1"))
	assert.True(t, f.Contains("25.1"))
	assert.False(t, f.Contains("25.2"))
	assert.False(t, f.Contains("measurement"))

	// Groups may carry one trailing slash, or omit it.
	assert.True(t, f.Contains("/1.2/measurement/mca_1/"))
	assert.True(t, f.Contains("/1.2/measurement/mca_1"))
	assert.False(t, f.Contains("/1.2/measurement/mca_8/info/calibration"))
	assert.True(t, f.Contains("/1.2/measurement/mca_0/info/calibration"))

	// Datasets never carry a trailing slash.
	assert.False(t, f.Contains("/1.2/measurement/mca_0/info/calibration/"))
}

func TestContains_Group(t *testing.T) {
	f := openSample(t)

	scan, err := f.Group("/1.2/")
	require.NoError(t, err)
	assert.True(t, scan.Contains("measurement"))

	root, err := f.Group("/")
	require.NoError(t, err)
	assert.True(t, root.Contains("25.1"))
	assert.False(t, root.Contains("25.2"))
}

func TestDataColumn(t *testing.T) {
	f := openSample(t)

	duo := readFloat32s(t, f, "/1.2/measurement/duo")
	var sum float64
	for _, v := range duo {
		sum += float64(v)
	}
	assert.InDelta(t, 12.0, sum, 1e-6)

	up := readFloat32s(t, f, "/1.1/measurement/MRTSlit UP")
	sum = 0
	for _, v := range up {
		sum += float64(v)
	}
	assert.InDelta(t, 87.891, sum, 1e-4)
}

func TestStartTimeIsISO8601(t *testing.T) {
	f := openSample(t)
	assert.Equal(t, "2016-02-11T09:55:20", readString(t, f, "/1.1/start_time"))
}

func TestGetGroup(t *testing.T) {
	f := openSample(t)

	instrument, err := f.Group("25.1")
	require.NoError(t, err)
	instrument, err = instrument.Group("instrument")
	require.NoError(t, err)

	positioners, err := instrument.Group("positioners")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Pslit HGap", "MRTSlit UP", "MRTSlit DOWN",
		"Sslit1 VOff", "Sslit1 HOff", "Sslit1 VGap",
	}, positioners.Keys())

	_, err = instrument.Get("Holy Grail")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAbsoluteEqualsChained(t *testing.T) {
	f := openSample(t)

	direct, err := f.Get("/1.2/instrument/positioners")
	require.NoError(t, err)

	scan, err := f.Group("1.2")
	require.NoError(t, err)
	chained, err := scan.Get("instrument/positioners")
	require.NoError(t, err)

	assert.Equal(t, direct.Path(), chained.Path())
	assert.Equal(t, direct.Kind(), chained.Kind())
}

func TestKeysInFileOrder(t *testing.T) {
	f := openSample(t)

	assert.Equal(t, []string{"1.1", "25.1", "1.2"}, f.Keys())

	scan, err := f.Group("1.2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"NX_class": "NXentry"}, scan.Attrs())
}

func TestMCACalibration(t *testing.T) {
	f := openSample(t)

	read := func(path string) []float64 {
		ds, err := f.Dataset(path)
		require.NoError(t, err)
		v, err := ds.Read()
		require.NoError(t, err)
		return v.([]float64)
	}

	calib0 := read("/1.2/measurement/mca_0/info/calibration")
	assert.Equal(t, []float64{1, 2, 3}, calib0)

	// Calibration is unique per scan and applies to every analyzer.
	calib1 := read("/1.2/measurement/mca_1/info/calibration")
	assert.Equal(t, calib0, calib1)
}

func TestMCAChannelsAreCalibrated(t *testing.T) {
	f := openSample(t)

	// channels[i] = a + b*i + c*i^2 over channel indices 0,1,2 with
	// #@CALIB 1 2 3.
	chann0 := readFloat32s(t, f, "/1.2/measurement/mca_0/info/channels")
	assert.Equal(t, []float32{1, 6, 17}, chann0)

	chann1 := readFloat32s(t, f, "/1.2/measurement/mca_1/info/channels")
	assert.Equal(t, chann0, chann1)

	ds, err := f.Dataset("/1.2/measurement/mca_0/info/channels")
	require.NoError(t, err)
	assert.Equal(t, DtypeFloat32, ds.Dtype())
}

func TestMCAData(t *testing.T) {
	f := openSample(t)

	ds, err := f.Dataset("/1.2/measurement/mca_0/data")
	require.NoError(t, err)
	v, err := ds.Read()
	require.NoError(t, err)
	data := v.([][]float64)
	require.Equal(t, []int{3, 3}, ds.Shape())

	// Per-row sums of the first analyzer.
	wantSums := []float64{3.0, 12.1, 21.7}
	for j, row := range data {
		var sum float64
		for _, x := range row {
			sum += x
		}
		assert.InDelta(t, wantSums[j], sum, 1e-4, "row %d", j)
	}

	// Third analyzer summed over both axes.
	scan, err := f.Group("1.2")
	require.NoError(t, err)
	mca2, err := scan.Dataset("measurement/mca_2/data")
	require.NoError(t, err)
	v, err = mca2.Read()
	require.NoError(t, err)
	var total float64
	for _, row := range v.([][]float64) {
		for _, x := range row {
			total += x
		}
	}
	assert.InDelta(t, 9.1, total, 1e-5)

	assert.Equal(t, map[string]string{"interpretation": "spectrum"}, ds.Attrs())
}

func TestMotorPosition(t *testing.T) {
	f := openSample(t)

	positioners, err := f.Group("/1.1/instrument/positioners")
	require.NoError(t, err)

	// MRTSlit DOWN is fixed this scan: scalar from the #P0 line.
	down, err := positioners.Dataset("MRTSlit DOWN")
	require.NoError(t, err)
	v, err := down.Read()
	require.NoError(t, err)
	scalar, ok := v.(float32)
	require.True(t, ok, "fixed motor should be a scalar, got %T", v)
	assert.InDelta(t, 0.87125, float64(scalar), 1e-6)
	assert.Empty(t, down.Shape())

	// MRTSlit UP moves: dataset is the matching data column.
	up, err := positioners.Dataset("MRTSlit UP")
	require.NoError(t, err)
	v, err = up.Read()
	require.NoError(t, err)
	col, ok := v.([]float32)
	require.True(t, ok, "moving motor should be a column, got %T", v)
	want := []float64{-1.23, 8.478100e+01, 3.14, 1.2}
	require.Len(t, col, len(want))
	for i := range want {
		assert.InDelta(t, want[i], float64(col[i]), 1e-4)
	}
}

func TestMotorWithoutPositionFailsOnRead(t *testing.T) {
	text := `#O0 alpha  beta
#S 1 scan
#N 1
#L x
1
`
	f, err := OpenReader(strings.NewReader(text))
	require.NoError(t, err)

	// beta resolves (the skeleton is fixed) but has no #P value.
	ds, err := f.Dataset("/1.1/instrument/positioners/beta")
	require.NoError(t, err)
	_, err = ds.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNumberOfMCAAnalysers(t *testing.T) {
	// Scan 1.2 has 2 data columns + 3 MCA spectra per data row.
	f := openSample(t)
	m, err := f.Group("1.2")
	require.NoError(t, err)
	m, err = m.Group("measurement")
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())
}

func TestTitle(t *testing.T) {
	f := openSample(t)
	assert.Equal(t, "25  ascan  c3th 1.33245 1.52245  40 0.15",
		readString(t, f, "/25.1/title"))
}

// MCA groups and datasets are aliased under measurement/mca_<i> and
// instrument/mca_<i>; visit counts both.
func TestVisit(t *testing.T) {
	// scan 1.1: 15 nodes (6 generic + 3 data cols + 6 motors)
	// scan 25.1: 16 nodes (6 generic + 4 data cols + 6 motors)
	// scan 1.2: 44 nodes (6 generic + 2 data cols + 6 motors + 3*5*2 MCA)
	f := openSample(t)

	var names []string
	err := f.Visit(func(path string) error {
		names = append(names, path)
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, names, "/1.2/instrument/positioners/Pslit HGap")
	assert.Len(t, names, 75)

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		assert.False(t, seen[n], "duplicate visit entry %q", n)
		seen[n] = true
	}
}

func TestVisitItems_DatasetsOnly(t *testing.T) {
	// scan 1.1: 11 datasets, scan 25.1: 12, scan 1.2: 28.
	f := openSample(t)

	var datasets []string
	err := f.VisitItems(func(path string, n Node) error {
		if n.Kind() == KindDataset {
			datasets = append(datasets, path)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, datasets, "/1.2/instrument/positioners/Pslit HGap")
	assert.Len(t, datasets, 51)
}

func TestVisit_StopsOnError(t *testing.T) {
	f := openSample(t)

	stop := errors.New("stop")
	count := 0
	err := f.Visit(func(string) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, count)
}

func TestMCAAliasSharesValues(t *testing.T) {
	f := openSample(t)

	m, err := f.Dataset("/1.2/measurement/mca_1/data")
	require.NoError(t, err)
	i, err := f.Dataset("/1.2/instrument/mca_1/data")
	require.NoError(t, err)

	assert.NotEqual(t, m.Path(), i.Path())

	mv, err := m.Read()
	require.NoError(t, err)
	iv, err := i.Read()
	require.NoError(t, err)
	assert.Equal(t, mv, iv)
}

func TestRepeatedReadsAreEqual(t *testing.T) {
	f := openSample(t)

	ds, err := f.Dataset("/1.2/measurement/uno")
	require.NoError(t, err)
	first, err := ds.Read()
	require.NoError(t, err)
	second, err := ds.Read()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPathErrorIsLocal(t *testing.T) {
	f := openSample(t)

	_, err := f.Get("/7.1")
	require.Error(t, err)
	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "/7.1", perr.Path)

	// A failed resolution never invalidates the handle.
	_, err = f.Get("/1.1/title")
	assert.NoError(t, err)
}

func TestDatasetWithTrailingChildFails(t *testing.T) {
	f := openSample(t)
	_, err := f.Get("/1.1/title/child")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReads(t *testing.T) {
	f := openSample(t)

	paths := []string{
		"/1.2/measurement/mca_0/data",
		"/1.2/measurement/duo",
		"/25.1/title",
		"/1.1/instrument/positioners/MRTSlit UP",
	}
	done := make(chan error, 32)
	for i := 0; i < 32; i++ {
		go func(p string) {
			ds, err := f.Dataset(p)
			if err != nil {
				done <- err
				return
			}
			_, err = ds.Read()
			done <- err
		}(paths[i%len(paths)])
	}
	for i := 0; i < 32; i++ {
		assert.NoError(t, <-done)
	}
}
