// Package streams reads MPAS stream index files (streams.ocean,
// streams.cice, ...) and resolves a stream name plus a date window into the
// ordered list of output files that cover it.
package streams

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// Stream is one <stream> or <immutable_stream> entry.
type Stream struct {
	Name             string `xml:"name,attr"`
	Type             string `xml:"type,attr"`
	FilenameTemplate string `xml:"filename_template,attr"`
	FilenameInterval string `xml:"filename_interval,attr"`
	OutputInterval   string `xml:"output_interval,attr"`
	ReferenceTime    string `xml:"reference_time,attr"`
	Immutable        bool   `xml:"-"`
}

type streamsXML struct {
	Streams    []Stream `xml:"stream"`
	Immutables []Stream `xml:"immutable_stream"`
}

// File is one output file of a stream with the timestamp embedded in its name.
type File struct {
	Path string
	Date timekeeping.Date
	// Dated is false when the template carries no date tokens.
	Dated bool
}

// StreamsFile is a parsed stream index.
type StreamsFile struct {
	Path    string
	Dir     string
	streams map[string]Stream
	order   []string
}

// Open reads the stream index filename; a relative filename and relative
// file templates are resolved against dir.
func Open(filename, dir string) (*StreamsFile, error) {
	path := filename
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, filename)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "streams: open %s", path))
	}
	defer f.Close() //nolint:errcheck

	if dir == "" {
		dir = filepath.Dir(path)
	}
	sf, err := Parse(f, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "streams: parse %s", path)
	}
	sf.Path = path
	return sf, nil
}

// Parse decodes a stream index from r. dir is the directory relative file
// templates are resolved against.
func Parse(r io.Reader, dir string) (*StreamsFile, error) {
	var doc streamsXML
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "streams: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	if err := decoder.Decode(&doc); err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "streams: decode xml"))
	}

	sf := &StreamsFile{Dir: dir, streams: make(map[string]Stream)}
	add := func(s Stream) {
		if _, dup := sf.streams[s.Name]; !dup {
			sf.order = append(sf.order, s.Name)
		}
		sf.streams[s.Name] = s
	}
	for _, s := range doc.Immutables {
		s.Immutable = true
		add(s)
	}
	for _, s := range doc.Streams {
		add(s)
	}
	return sf, nil
}

// Names returns the stream names in file order (immutable streams first).
func (sf *StreamsFile) Names() []string {
	return append([]string(nil), sf.order...)
}

// Has reports whether the index defines stream name.
func (sf *StreamsFile) Has(name string) bool {
	_, ok := sf.streams[name]
	return ok
}

// Stream returns the named stream definition.
func (sf *StreamsFile) Stream(name string) (Stream, error) {
	s, ok := sf.streams[name]
	if !ok {
		return Stream{}, diagerr.Configf("streams: stream %q not defined in %s", name, sf.Path)
	}
	return s, nil
}

// FindStream returns the first candidate name the index defines.
func (sf *StreamsFile) FindStream(candidates []string) (string, error) {
	for _, c := range candidates {
		if sf.Has(c) {
			return c, nil
		}
	}
	return "", diagerr.Configf("streams: none of %v defined in %s", candidates, sf.Path)
}

// Files lists every file on disk that matches the stream's template,
// ordered by embedded timestamp and then by path.
func (sf *StreamsFile) Files(name string) ([]File, error) {
	s, err := sf.Stream(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := compileTemplate(sf.templatePath(s))
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(tmpl.glob)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "streams: glob %s", tmpl.glob))
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, ok := tmpl.match(p)
		if !ok {
			continue
		}
		files = append(files, f)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if c := files[i].Date.Compare(files[j].Date); c != 0 {
			return c < 0
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// ReadPath returns every file of the stream. It fails when there are none.
func (sf *StreamsFile) ReadPath(name string) ([]string, error) {
	files, err := sf.Files(name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, diagerr.Dataf("streams: no files found for stream %q", name)
	}
	return paths(files), nil
}

// Resolve returns the files of stream name whose time span intersects
// [startDate, endDate] (MPAS date strings), in timestamp order. A file
// spans from its embedded timestamp to that timestamp plus the stream's
// filename_interval; when the interval is not a duration ("none",
// "input_interval", ...) the span ends at the next file's timestamp.
// Files whose template carries no date always match. An empty result is
// an error naming the stream.
func (sf *StreamsFile) Resolve(name, startDate, endDate string) ([]string, error) {
	start, err := timekeeping.ParseDate(startDate)
	if err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "streams: start date"))
	}
	end, err := timekeeping.ParseDate(endDate)
	if err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "streams: end date"))
	}
	if end.Before(start) {
		return nil, diagerr.Configf("streams: end date %s precedes start date %s", end, start)
	}

	s, err := sf.Stream(name)
	if err != nil {
		return nil, err
	}
	files, err := sf.Files(name)
	if err != nil {
		return nil, err
	}
	iv, fixed := s.Interval()

	var selected []File
	for i, f := range files {
		if f.Dated {
			fileEnd, ok := spanEnd(files, i, iv, fixed)
			if !overlaps(f, fileEnd, ok, start, end) {
				continue
			}
		}
		selected = append(selected, f)
	}
	if len(selected) == 0 {
		return nil, diagerr.Dataf("streams: no files for stream %q between %s and %s", name, startDate, endDate)
	}

	zap.L().Debug("resolved stream files",
		zap.String("component", "streams"),
		zap.String("stream", name),
		zap.Int("files", len(selected)),
		zap.String("first", selected[0].Path),
		zap.String("last", selected[len(selected)-1].Path),
	)
	return paths(selected), nil
}

// Interval parses FilenameInterval. It returns false when the attribute is
// not a fixed duration.
func (s Stream) Interval() (timekeeping.Interval, bool) {
	iv, err := timekeeping.ParseInterval(s.FilenameInterval)
	if err != nil || iv.IsZero() {
		return timekeeping.Interval{}, false
	}
	return iv, true
}

// spanEnd is the exclusive end of files[i]. ok is false for the last file
// of a stream without a fixed interval, whose span is a single instant.
func spanEnd(files []File, i int, iv timekeeping.Interval, fixed bool) (end timekeeping.Date, ok bool) {
	if fixed {
		return files[i].Date.Add(iv), true
	}
	for _, next := range files[i+1:] {
		if next.Dated && next.Date.After(files[i].Date) {
			return next.Date, true
		}
	}
	return timekeeping.Date{}, false
}

func overlaps(f File, fileEnd timekeeping.Date, ok bool, start, end timekeeping.Date) bool {
	if f.Date.After(end) {
		return false
	}
	if !ok {
		return !f.Date.Before(start)
	}
	return fileEnd.After(start)
}

func (sf *StreamsFile) templatePath(s Stream) string {
	if filepath.IsAbs(s.FilenameTemplate) || sf.Dir == "" {
		return s.FilenameTemplate
	}
	return filepath.Join(sf.Dir, s.FilenameTemplate)
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// template is a compiled filename_template: a glob for listing candidates
// and a regexp that pulls the date tokens back out of a match.
type template struct {
	glob   string
	re     *regexp.Regexp
	tokens []byte
}

var tokenRE = regexp.MustCompile(`\$[YMDhms]`)

func compileTemplate(t string) (*template, error) {
	if t == "" {
		return nil, diagerr.Config(eris.New("streams: empty filename_template"))
	}

	var (
		glob   strings.Builder
		re     strings.Builder
		tokens []byte
		last   int
	)
	re.WriteString("^")
	for _, loc := range tokenRE.FindAllStringIndex(t, -1) {
		lit := t[last:loc[0]]
		glob.WriteString(lit)
		re.WriteString(regexp.QuoteMeta(lit))
		glob.WriteString("*")
		re.WriteString(`(\d+)`)
		tokens = append(tokens, t[loc[0]+1])
		last = loc[1]
	}
	glob.WriteString(t[last:])
	re.WriteString(regexp.QuoteMeta(t[last:]))
	re.WriteString("$")

	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "streams: compile template %s", t))
	}
	return &template{glob: glob.String(), re: compiled, tokens: tokens}, nil
}

func (t *template) match(path string) (File, bool) {
	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return File{}, false
	}
	f := File{Path: path, Date: timekeeping.Date{Month: 1, Day: 1}, Dated: len(t.tokens) > 0}
	for i, tok := range t.tokens {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return File{}, false
		}
		switch tok {
		case 'Y':
			f.Date.Year = v
		case 'M':
			f.Date.Month = v
		case 'D':
			f.Date.Day = v
		case 'h':
			f.Date.Hour = v
		case 'm':
			f.Date.Minute = v
		case 's':
			f.Date.Second = v
		}
	}
	return f, true
}
