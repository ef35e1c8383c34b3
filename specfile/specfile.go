// Package specfile parses SPEC scan-log text files into an immutable,
// in-memory representation. A file is parsed in a single streaming pass;
// any malformed line rejects the whole file.
package specfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ChannelRange holds the #@CHANN metadata of a scan: the number of MCA
// channels and the raw channel axis parameters.
type ChannelRange struct {
	Count     int
	Min       float64
	Max       float64
	Reduction float64
}

// MCAInfo groups the #@-family header metadata of a scan. Calibration is
// shared by every analyzer of the scan.
type MCAInfo struct {
	Devices     []string    // #@MCADEV values, one per line
	Format      string      // #@MCA format string (e.g. "%16C")
	Channels    *ChannelRange
	Calibration *[3]float64 // #@CALIB a b c
}

// Scan is one #S block: header metadata plus a rows×columns data block
// and zero or more MCA spectra per data row.
type Scan struct {
	Number    int
	Order     int     // 1-based occurrence of Number within the file
	Title     string  // the #S line with the "#S " prefix stripped
	Date      string  // raw #D line of the scan, "" if absent
	CountTime string  // raw #T value
	Positions []float64 // concatenated #P values, aligned with File.Motors
	Columns   []string  // #L labels
	Data      [][]float64
	Comments  []string
	MCA       *MCAInfo
	// Spectra is indexed [analyzer][row][channel]. All rows of one
	// analyzer have the same channel count.
	Spectra [][][]float64
}

// Key returns the external scan identifier "<number>.<order>".
func (s *Scan) Key() string {
	return fmt.Sprintf("%d.%d", s.Number, s.Order)
}

// ColumnIndex returns the position of a data column by label.
func (s *Scan) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns the full data column by label, one value per data row.
func (s *Scan) Column(name string) ([]float64, bool) {
	i, ok := s.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	col := make([]float64, len(s.Data))
	for j, row := range s.Data {
		col[j] = row[i]
	}
	return col, true
}

// NumMCA returns the number of analyzers recorded in this scan.
func (s *Scan) NumMCA() int {
	return len(s.Spectra)
}

// ChannelCount returns the per-analyzer channel count: #@CHANN when
// present, else the length of the first spectrum.
func (s *Scan) ChannelCount() int {
	if s.MCA != nil && s.MCA.Channels != nil {
		return s.MCA.Channels.Count
	}
	if len(s.Spectra) > 0 && len(s.Spectra[0]) > 0 {
		return len(s.Spectra[0][0])
	}
	return 0
}

// File is an ordered, immutable collection of Scans parsed from one
// SPEC file. Motor names (#O) live in the file header and apply to
// every scan.
type File struct {
	Name     string   // #F
	Epoch    int64    // #E
	Date     string   // file-level #D, raw
	Comments []string // file-level #C
	Motors   []string // #O names, in file order
	Mnemonics []string // #o names
	Counters []string  // #J names
	Scans    []*Scan

	index map[string]*Scan
}

// Keys lists scan keys in file order.
func (f *File) Keys() []string {
	keys := make([]string, len(f.Scans))
	for i, s := range f.Scans {
		keys[i] = s.Key()
	}
	return keys
}

// Scan looks up a scan by its "<number>.<order>" key.
func (f *File) Scan(key string) (*Scan, bool) {
	s, ok := f.index[key]
	return s, ok
}

// Len returns the number of scans.
func (f *File) Len() int {
	return len(f.Scans)
}

// Option adjusts parsing behavior.
type Option func(*parser)

// WithMCAMarker overrides the line prefix that introduces an MCA
// spectrum row. The default is "@A".
func WithMCAMarker(marker string) Option {
	return func(p *parser) {
		p.mcaMarker = marker
	}
}

// Read parses the SPEC file at path.
func Read(path string, opts ...Option) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return Parse(fd, opts...)
}

// Parse consumes r fully and returns the parsed File. The reader is
// scanned exactly once; the returned File holds no reference to r.
func Parse(r io.Reader, opts ...Option) (*File, error) {
	p := &parser{
		file:      &File{index: make(map[string]*Scan)},
		mcaMarker: "@A",
		orders:    make(map[int]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.run(r); err != nil {
		return nil, err
	}
	return p.file, nil
}

// multiSpace splits #O and #L name lists: names may contain single
// spaces, so fields are separated by runs of two or more spaces.
var multiSpace = regexp.MustCompile(`\s{2,}`)

func splitNames(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return multiSpace.Split(s, -1)
}

type parser struct {
	file      *File
	mcaMarker string
	orders    map[int]int // scan number -> occurrences seen

	scan      *Scan
	ncols     int  // #N value, -1 when absent
	sawN      bool
	rowSpectra int // spectra seen after the current data row
	line      int
}

func (p *parser) errf(text, format string, args ...any) error {
	return &FormatError{Line: p.line, Text: text, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for sc.Scan() {
		p.line++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "#S"):
			if err := p.closeScan(); err != nil {
				return err
			}
			if err := p.openScan(trimmed); err != nil {
				return err
			}

		case strings.HasPrefix(trimmed, p.mcaMarker):
			full, err := p.continuation(sc, trimmed)
			if err != nil {
				return err
			}
			if err := p.addSpectrum(full); err != nil {
				return err
			}

		case strings.HasPrefix(trimmed, "#"):
			if err := p.header(trimmed); err != nil {
				return err
			}

		default:
			if err := p.dataRow(trimmed); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return p.closeScan()
}

// continuation joins physical lines ending in a backslash into one
// logical spectrum line (the #@MCA %..C wrapping convention).
func (p *parser) continuation(sc *bufio.Scanner, first string) (string, error) {
	full := first
	for strings.HasSuffix(full, "\\") {
		if !sc.Scan() {
			return "", p.errf(first, "unterminated continuation line")
		}
		p.line++
		full = strings.TrimSuffix(full, "\\") + " " + strings.TrimSpace(sc.Text())
	}
	return full, nil
}

func (p *parser) openScan(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#S"))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return p.errf(line, "missing scan number on #S line")
	}
	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return p.errf(line, "bad scan number %q", fields[0])
	}
	p.orders[num]++
	p.scan = &Scan{
		Number: num,
		Order:  p.orders[num],
		Title:  rest,
	}
	p.ncols = -1
	p.sawN = false
	p.rowSpectra = 0
	return nil
}

func (p *parser) closeScan() error {
	s := p.scan
	if s == nil {
		return nil
	}
	if len(s.Data) > 0 {
		if !p.sawN {
			return p.errf("#S "+s.Title, "scan %s has data rows but no #N line", s.Key())
		}
		if len(s.Columns) == 0 {
			return p.errf("#S "+s.Title, "scan %s has data rows but no #L line", s.Key())
		}
	}
	if err := p.checkSpectra(s); err != nil {
		return err
	}
	p.file.Scans = append(p.file.Scans, s)
	p.file.index[s.Key()] = s
	p.scan = nil
	return nil
}

// checkSpectra enforces a rectangular spectra block: every data row
// carries the same number of spectra, and every spectrum of the scan
// has the channel count announced by #@CHANN (or the first spectrum).
func (p *parser) checkSpectra(s *Scan) error {
	if len(s.Spectra) == 0 {
		return nil
	}
	want := s.ChannelCount()
	for a, rows := range s.Spectra {
		if len(rows) != len(s.Data) {
			return p.errf("#S "+s.Title,
				"scan %s: analyzer %d has %d spectra for %d data rows",
				s.Key(), a, len(rows), len(s.Data))
		}
		for _, spec := range rows {
			if len(spec) != want {
				return p.errf("#S "+s.Title,
					"scan %s: spectrum length %d, want %d channels",
					s.Key(), len(spec), want)
			}
		}
	}
	return nil
}

func (p *parser) header(line string) error {
	tag, value := splitHeader(line)
	if p.scan == nil {
		return p.fileHeader(tag, value, line)
	}
	return p.scanHeader(tag, value, line)
}

// splitHeader separates "#P0 1.5 2.5" into ("P0", "1.5 2.5").
func splitHeader(line string) (tag, value string) {
	rest := line[1:]
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return rest[:i], strings.TrimSpace(rest[i+1:])
	}
	return rest, ""
}

func (p *parser) fileHeader(tag, value, line string) error {
	switch {
	case tag == "F":
		p.file.Name = value
	case tag == "E":
		epoch, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return p.errf(line, "bad epoch %q", value)
		}
		p.file.Epoch = epoch
	case tag == "D":
		p.file.Date = value
	case tag == "C":
		p.file.Comments = append(p.file.Comments, value)
	case strings.HasPrefix(tag, "O"):
		p.file.Motors = append(p.file.Motors, splitNames(value)...)
	case strings.HasPrefix(tag, "o"):
		// Mnemonics never contain spaces; single-space separation.
		p.file.Mnemonics = append(p.file.Mnemonics, strings.Fields(value)...)
	case strings.HasPrefix(tag, "J"):
		p.file.Counters = append(p.file.Counters, splitNames(value)...)
	}
	return nil
}

func (p *parser) scanHeader(tag, value, line string) error {
	s := p.scan
	switch {
	case tag == "D":
		s.Date = value
	case tag == "T":
		s.CountTime = value
	case tag == "C":
		s.Comments = append(s.Comments, value)
	case tag == "N":
		// Some files write "#N n m"; the first integer is the column count.
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return p.errf(line, "empty #N line")
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return p.errf(line, "bad column count %q", fields[0])
		}
		p.ncols = n
		p.sawN = true
	case tag == "L":
		s.Columns = splitNames(value)
		if p.sawN && p.ncols != len(s.Columns) {
			return p.errf(line, "scan %s: #N is %d but #L names %d columns",
				s.Key(), p.ncols, len(s.Columns))
		}
	case strings.HasPrefix(tag, "P"):
		vals, err := p.parseFloats(value, line)
		if err != nil {
			return err
		}
		s.Positions = append(s.Positions, vals...)
	case strings.HasPrefix(tag, "@"):
		return p.mcaHeader(tag, value, line)
	}
	return nil
}

func (p *parser) mcaHeader(tag, value, line string) error {
	s := p.scan
	if s.MCA == nil {
		s.MCA = &MCAInfo{}
	}
	switch tag {
	case "@MCADEV":
		s.MCA.Devices = append(s.MCA.Devices, value)
	case "@MCA":
		s.MCA.Format = value
	case "@CHANN":
		vals, err := p.parseFloats(value, line)
		if err != nil {
			return err
		}
		if len(vals) != 4 {
			return p.errf(line, "#@CHANN wants 4 values, got %d", len(vals))
		}
		n := int(vals[0])
		if n <= 0 {
			return p.errf(line, "#@CHANN channel count %d out of range", n)
		}
		s.MCA.Channels = &ChannelRange{
			Count:     n,
			Min:       vals[1],
			Max:       vals[2],
			Reduction: vals[3],
		}
	case "@CALIB":
		vals, err := p.parseFloats(value, line)
		if err != nil {
			return err
		}
		if len(vals) != 3 {
			return p.errf(line, "#@CALIB wants 3 values, got %d", len(vals))
		}
		s.MCA.Calibration = &[3]float64{vals[0], vals[1], vals[2]}
	}
	return nil
}

func (p *parser) dataRow(line string) error {
	if p.scan == nil {
		return p.errf(line, "data row before the first #S line")
	}
	vals, err := p.parseFloats(line, line)
	if err != nil {
		return err
	}
	s := p.scan
	if len(s.Columns) > 0 && len(vals) != len(s.Columns) {
		return p.errf(line, "scan %s: data row has %d values, want %d",
			s.Key(), len(vals), len(s.Columns))
	}
	if p.sawN && len(vals) != p.ncols {
		return p.errf(line, "scan %s: data row has %d values but #N is %d",
			s.Key(), len(vals), p.ncols)
	}
	s.Data = append(s.Data, vals)
	p.rowSpectra = 0
	return nil
}

// addSpectrum records one MCA spectrum. Consecutive spectrum lines after
// a data row belong to analyzers 0, 1, 2... in order.
func (p *parser) addSpectrum(line string) error {
	if p.scan == nil {
		return p.errf(line, "MCA spectrum before the first #S line")
	}
	s := p.scan
	if len(s.Data) == 0 {
		return p.errf(line, "scan %s: MCA spectrum before any data row", s.Key())
	}
	vals, err := p.parseFloats(strings.TrimSpace(line[len(p.mcaMarker):]), line)
	if err != nil {
		return err
	}
	analyzer := p.rowSpectra
	p.rowSpectra++
	for len(s.Spectra) <= analyzer {
		s.Spectra = append(s.Spectra, nil)
	}
	s.Spectra[analyzer] = append(s.Spectra[analyzer], vals)
	return nil
}

func (p *parser) parseFloats(s, line string) ([]float64, error) {
	fields := strings.Fields(s)
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, p.errf(line, "bad numeric token %q", f)
		}
		vals[i] = v
	}
	return vals, nil
}
