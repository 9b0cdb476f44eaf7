package livestatus

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/oceanplexian/livestatus/internal/config"
)

// OutputFormat selects the renderer of a GET response.
type OutputFormat int

const (
	FormatBrokenCSV OutputFormat = iota
	FormatCSV
	FormatJSON
	FormatWrappedJSON
	FormatPython
	FormatPython3
)

func parseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "csv":
		return FormatBrokenCSV, nil
	case "CSV":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "wrapped_json":
		return FormatWrappedJSON, nil
	case "python":
		return FormatPython, nil
	case "python3":
		return FormatPython3, nil
	}
	return 0, errors.Errorf("missing/invalid output format, use one of 'csv', 'CSV', 'json', 'wrapped_json', 'python' or 'python3'")
}

// Separators are the bytes of the default csv format.
type Separators struct {
	Dataset     byte
	Field       byte
	List        byte
	HostService byte
}

var DefaultSeparators = Separators{Dataset: '\n', Field: ';', List: ',', HostService: '|'}

var jsonAPI = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// Renderer turns result rows into the bytes of one output format. Header,
// if used, comes before the first Row.
type Renderer interface {
	Header(names []string)
	Row(cells []interface{})
	End()
}

func newRenderer(format OutputFormat, w io.Writer, seps Separators, enc config.Encoding) Renderer {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		cw.UseCRLF = true
		return &csvRenderer{w: cw}
	case FormatJSON:
		return &jsonRenderer{w: w, enc: enc}
	case FormatWrappedJSON:
		return &jsonRenderer{w: w, enc: enc, wrapped: true}
	case FormatPython:
		return &jsonRenderer{w: w, enc: enc, python: true, python2: true}
	case FormatPython3:
		return &jsonRenderer{w: w, enc: enc, python: true}
	}
	return &brokenCSVRenderer{w: w, seps: seps}
}

// brokenCSVRenderer writes the traditional livestatus format: separator
// bytes without any quoting.
type brokenCSVRenderer struct {
	w    io.Writer
	seps Separators
	buf  []byte
}

func (r *brokenCSVRenderer) Header(names []string) {
	cells := make([]interface{}, len(names))
	for i, n := range names {
		cells[i] = n
	}
	r.Row(cells)
}

func (r *brokenCSVRenderer) Row(cells []interface{}) {
	b := r.buf[:0]
	for i, c := range cells {
		if i > 0 {
			b = append(b, r.seps.Field)
		}
		b = r.appendCell(b, c)
	}
	b = append(b, r.seps.Dataset)
	_, _ = r.w.Write(b)
	r.buf = b
}

func (r *brokenCSVRenderer) appendCell(b []byte, c interface{}) []byte {
	switch v := c.(type) {
	case []string:
		for i, e := range v {
			if i > 0 {
				b = append(b, r.seps.List)
			}
			b = append(b, e...)
		}
		return b
	case []int64:
		for i, e := range v {
			if i > 0 {
				b = append(b, r.seps.List)
			}
			b = strconv.AppendInt(b, e, 10)
		}
		return b
	case map[string]string:
		for i, k := range sortedKeys(v) {
			if i > 0 {
				b = append(b, r.seps.List)
			}
			b = append(b, k...)
			b = append(b, r.seps.HostService)
			b = append(b, v[k]...)
		}
		return b
	case []byte:
		return append(b, v...)
	}
	return append(b, plainCell(c)...)
}

func (r *brokenCSVRenderer) End() {}

// csvRenderer writes RFC 4180 records.
type csvRenderer struct {
	w *csv.Writer
}

func (r *csvRenderer) Header(names []string) {
	_ = r.w.Write(names)
	r.w.Flush()
}

func (r *csvRenderer) Row(cells []interface{}) {
	rec := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case []string:
			rec[i] = strings.Join(v, ",")
		case []int64:
			rec[i] = joinInts(v, ",")
		case map[string]string:
			pairs := make([]string, 0, len(v))
			for _, k := range sortedKeys(v) {
				pairs = append(pairs, k+"|"+v[k])
			}
			rec[i] = strings.Join(pairs, ",")
		case []byte:
			rec[i] = string(v)
		default:
			rec[i] = plainCell(c)
		}
	}
	_ = r.w.Write(rec)
	r.w.Flush()
}

func (r *csvRenderer) End() { r.w.Flush() }

// plainCell formats scalar cells.
func plainCell(c interface{}) string {
	switch v := c.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatDouble(v)
	case string:
		return v
	}
	return ""
}

func joinInts(ids []int64, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, sep)
}

func formatDouble(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// jsonRenderer covers json, wrapped_json and both python flavors, which
// differ in a few literals only.
type jsonRenderer struct {
	w       io.Writer
	enc     config.Encoding
	wrapped bool
	python  bool
	python2 bool

	started bool
	rows    int
}

func (r *jsonRenderer) begin(s *jsoniter.Stream) {
	if r.started {
		return
	}
	r.started = true
	if r.wrapped {
		s.WriteRaw(`{"data":[`)
	} else {
		s.WriteRaw("[")
	}
}

func (r *jsonRenderer) Header(names []string) {
	s := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(s)
	if r.wrapped {
		r.started = true
		s.WriteRaw(`{"columns":`)
		r.writeStrings(s, names)
		s.WriteRaw(`,"data":[`)
	} else {
		r.begin(s)
		r.writeStrings(s, names)
		r.rows++
	}
	_, _ = r.w.Write(s.Buffer())
}

func (r *jsonRenderer) Row(cells []interface{}) {
	s := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(s)
	r.begin(s)
	if r.rows > 0 {
		s.WriteRaw(",\n")
	}
	s.WriteArrayStart()
	for i, c := range cells {
		if i > 0 {
			s.WriteMore()
		}
		r.writeValue(s, c)
	}
	s.WriteArrayEnd()
	r.rows++
	_, _ = r.w.Write(s.Buffer())
}

func (r *jsonRenderer) End() {
	s := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(s)
	r.begin(s)
	if r.wrapped {
		s.WriteRaw(`],"total_count":`)
		s.WriteInt(r.rows)
		s.WriteRaw("}\n")
	} else {
		s.WriteRaw("]\n")
	}
	_, _ = r.w.Write(s.Buffer())
}

func (r *jsonRenderer) writeStrings(s *jsoniter.Stream, strs []string) {
	s.WriteArrayStart()
	for i, e := range strs {
		if i > 0 {
			s.WriteMore()
		}
		r.writeString(s, e)
	}
	s.WriteArrayEnd()
}

func (r *jsonRenderer) writeString(s *jsoniter.Stream, str string) {
	if r.python2 {
		s.WriteRaw("u")
	}
	s.WriteString(decodeString(str, r.enc))
}

func (r *jsonRenderer) writeValue(s *jsoniter.Stream, c interface{}) {
	switch v := c.(type) {
	case int64:
		s.WriteInt64(v)
	case int:
		s.WriteInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.WriteInt(0)
			return
		}
		s.WriteRaw(formatDouble(v))
	case string:
		r.writeString(s, v)
	case []string:
		r.writeStrings(s, v)
	case []int64:
		s.WriteArrayStart()
		for i, e := range v {
			if i > 0 {
				s.WriteMore()
			}
			s.WriteInt64(e)
		}
		s.WriteArrayEnd()
	case map[string]string:
		s.WriteObjectStart()
		for i, k := range sortedKeys(v) {
			if i > 0 {
				s.WriteMore()
			}
			r.writeString(s, k)
			s.WriteRaw(":")
			r.writeString(s, v[k])
		}
		s.WriteObjectEnd()
	case []byte:
		if r.python && !r.python2 {
			s.WriteRaw("b")
		}
		s.WriteString(latin1ToUTF8(string(v)))
	default:
		if r.python {
			s.WriteRaw("None")
		} else {
			s.WriteNil()
		}
	}
}

// decodeString interprets the bytes of s according to the data_encoding
// option and returns valid UTF-8.
func decodeString(s string, enc config.Encoding) string {
	switch enc {
	case config.EncodingLatin1:
		return latin1ToUTF8(s)
	case config.EncodingMixed:
		if utf8.ValidString(s) {
			return s
		}
		return latin1ToUTF8(s)
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func latin1ToUTF8(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		b.WriteRune(rune(s[i]))
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
