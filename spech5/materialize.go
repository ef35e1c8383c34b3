package spech5

import "github.com/ChannyClaus/silx/specfile"

// Dataset materialization: converting a resolved reference into its
// concrete value. Idempotent; values are cached once per underlying
// reference, so the measurement/mca_<i> and instrument/mca_<i> aliases
// share one materialized array.

// valueKey identifies a materialized value independently of the path
// it was reached through.
type valueKey struct {
	scan string
	kind refKind
	idx  int
}

func keyFor(ref nodeRef) valueKey {
	k := valueKey{kind: ref.kind, idx: ref.idx}
	if ref.scan != nil {
		k.scan = ref.scan.Key()
	}
	return k
}

func (f *File) value(path string, ref nodeRef) (any, error) {
	key := keyFor(ref)
	f.mu.RLock()
	v, ok := f.values[key]
	f.mu.RUnlock()
	if ok {
		return v, nil
	}
	v, err := f.materialize(path, ref)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.values[key] = v
	f.mu.Unlock()
	return v, nil
}

func (f *File) materialize(path string, ref nodeRef) (any, error) {
	s := ref.scan
	switch ref.kind {
	case refTitle:
		return s.Title, nil

	case refStartTime:
		raw := s.Date
		if raw == "" {
			raw = f.spec.Date
		}
		return toISO8601(raw), nil

	case refColumn:
		return columnFloat32(s.Data, ref.idx), nil

	case refMotor:
		name := f.spec.Motors[ref.idx]
		if ci, ok := s.ColumnIndex(name); ok {
			return columnFloat32(s.Data, ci), nil
		}
		if ref.idx >= len(s.Positions) {
			return nil, &PathError{Path: path, Reason: "no position recorded for motor " + name}
		}
		return float32(s.Positions[ref.idx]), nil

	case refMCAData:
		rows := s.Spectra[ref.idx]
		out := make([][]float64, len(rows))
		for j, spec := range rows {
			row := make([]float64, len(spec))
			copy(row, spec)
			out[j] = row
		}
		return out, nil

	case refMCACalib:
		a, b, c := calibration(s)
		return []float64{a, b, c}, nil

	case refMCAChannels:
		a, b, c := calibration(s)
		n := s.ChannelCount()
		out := make([]float32, n)
		for i := range out {
			x := float64(i)
			out[i] = float32(a + b*x + c*x*x)
		}
		return out, nil
	}
	return nil, &PathError{Path: path, Reason: "not a dataset"}
}

// calibration returns the #@CALIB coefficients, one triple per scan
// shared by every analyzer. The identity polynomial is the default.
func calibration(s *specfile.Scan) (a, b, c float64) {
	if s.MCA != nil && s.MCA.Calibration != nil {
		cal := s.MCA.Calibration
		return cal[0], cal[1], cal[2]
	}
	return 0, 1, 0
}

func columnFloat32(data [][]float64, col int) []float32 {
	out := make([]float32, len(data))
	for j, row := range data {
		out[j] = float32(row[col])
	}
	return out
}

func dtypeFor(ref nodeRef) Dtype {
	switch ref.kind {
	case refTitle, refStartTime:
		return DtypeString
	case refMCAData, refMCACalib:
		return DtypeFloat64
	default:
		return DtypeFloat32
	}
}

// shape returns the dataset dimensions: nil for scalars.
func (f *File) shape(ref nodeRef) []int {
	s := ref.scan
	switch ref.kind {
	case refColumn:
		return []int{len(s.Data)}
	case refMotor:
		if _, ok := s.ColumnIndex(f.spec.Motors[ref.idx]); ok {
			return []int{len(s.Data)}
		}
		return nil
	case refMCAData:
		return []int{len(s.Data), s.ChannelCount()}
	case refMCACalib:
		return []int{3}
	case refMCAChannels:
		return []int{s.ChannelCount()}
	}
	return nil
}
