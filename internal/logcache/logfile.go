package logcache

import (
	"bufio"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Logfile is one history file on disk, indexed by the time of its first line.
// Entries are loaded per class on demand and kept sorted by (time, lineno).
type Logfile struct {
	path  string
	since time.Time
	watch bool

	entries     []*Entry
	index       map[entryKey]struct{}
	sorted      bool
	classesRead uint32
	readPos     int64
	lineno      int

	log logrus.FieldLogger
}

func newLogfile(path string, watch bool, log logrus.FieldLogger) *Logfile {
	lf := &Logfile{
		path:   path,
		watch:  watch,
		index:  make(map[entryKey]struct{}),
		sorted: true,
		log:    log,
	}
	lf.since = lf.firstTimestamp()
	return lf
}

// firstTimestamp returns the time of the first line, or the zero time for
// empty and unreadable files.
func (lf *Logfile) firstTimestamp() time.Time {
	f, err := os.Open(lf.path)
	if err != nil {
		lf.log.WithError(err).Warnf("cannot open logfile %s", lf.path)
		return time.Time{}
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		lf.log.WithError(err).Warnf("cannot read first line of %s", lf.path)
		return time.Time{}
	}
	e, ok := ParseEntry(1, trimNewline(line))
	if !ok {
		return time.Time{}
	}
	return e.Time
}

func (lf *Logfile) Path() string        { return lf.path }
func (lf *Logfile) Since() time.Time    { return lf.since }
func (lf *Logfile) Watched() bool       { return lf.watch }
func (lf *Logfile) Size() int           { return len(lf.entries) }
func (lf *Logfile) ClassesRead() uint32 { return lf.classesRead }

// load brings the entries of classes into memory. The watched file is always
// advanced from the last read position. added is called once per inserted
// entry.
func (lf *Logfile) load(maxLines int, classes uint32, added func(*Logfile)) {
	missing := classes &^ lf.classesRead
	if !lf.watch && missing == 0 {
		return
	}
	f, err := os.Open(lf.path)
	if err != nil {
		lf.log.WithError(err).Warnf("cannot open logfile %s", lf.path)
		return
	}
	defer f.Close()

	if lf.watch {
		if _, err := f.Seek(lf.readPos, io.SeekStart); err != nil {
			lf.log.WithError(err).Warnf("cannot seek in logfile %s", lf.path)
			return
		}
		lf.readPos = lf.loadRange(f, lf.readPos, -1, maxLines, lf.classesRead, added)
	}
	if missing != 0 {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			lf.log.WithError(err).Warnf("cannot rewind logfile %s", lf.path)
			return
		}
		// The watched file is rescanned only up to where the catch-up read
		// stopped; lines written since then are read once with every class.
		limit := int64(-1)
		if lf.watch {
			limit = lf.readPos
		}
		lf.lineno = 0
		lf.loadRange(f, 0, limit, maxLines, missing, added)
		lf.classesRead |= missing
		if lf.watch {
			if _, err := f.Seek(lf.readPos, io.SeekStart); err != nil {
				lf.log.WithError(err).Warnf("cannot seek in logfile %s", lf.path)
				return
			}
			lf.readPos = lf.loadRange(f, lf.readPos, -1, maxLines, lf.classesRead, added)
		}
	}
	if !lf.sorted {
		sort.Slice(lf.entries, func(i, j int) bool {
			return lf.entries[i].key().less(lf.entries[j].key())
		})
		lf.sorted = true
	}
}

// loadRange reads complete lines from r starting at byte offset pos and
// returns the offset after the last consumed line. It stops at limit unless
// limit is negative. A trailing line without newline is left for the next
// read of a watched file.
func (lf *Logfile) loadRange(r io.Reader, pos, limit int64, maxLines int, classes uint32, added func(*Logfile)) int64 {
	br := bufio.NewReaderSize(r, 64*1024)
	for limit < 0 || pos < limit {
		line, err := br.ReadString('\n')
		if err != nil && (lf.watch || line == "") {
			if err != io.EOF {
				lf.log.WithError(err).Warnf("error reading %s", lf.path)
			}
			return pos
		}
		pos += int64(len(line))
		lf.lineno++
		if lf.lineno > maxLines {
			lf.log.Errorf("more than %d lines in %s, ignoring the rest", maxLines, lf.path)
			return pos
		}
		if lf.processLine(trimNewline(line), classes) && added != nil {
			added(lf)
		}
		if err != nil {
			return pos
		}
	}
	return pos
}

func (lf *Logfile) processLine(line string, classes uint32) bool {
	if classes == 0 {
		return false
	}
	e, ok := ParseEntry(lf.lineno, line)
	if !ok || classes&e.Class.Mask() == 0 {
		return false
	}
	k := e.key()
	if _, dup := lf.index[k]; dup {
		lf.log.Warnf("strange duplicate logfile line %s", line)
		return false
	}
	if n := len(lf.entries); n > 0 && k.less(lf.entries[n-1].key()) {
		lf.sorted = false
	}
	lf.index[k] = struct{}{}
	lf.entries = append(lf.entries, e)
	return true
}

// freeMessages drops the resident entries of classes and returns how many
// were removed.
func (lf *Logfile) freeMessages(classes uint32) int {
	kept := lf.entries[:0]
	freed := 0
	for _, e := range lf.entries {
		if classes&e.Class.Mask() != 0 {
			delete(lf.index, e.key())
			freed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(lf.entries); i++ {
		lf.entries[i] = nil
	}
	lf.entries = kept
	lf.classesRead &^= classes
	return freed
}

// entriesFor loads classes and returns the resident entries in ascending
// order. The slice is valid until the next load or free.
func (lf *Logfile) entriesFor(maxLines int, classes uint32, added func(*Logfile)) []*Entry {
	lf.load(maxLines, classes, added)
	return lf.entries
}

// walk calls fn for resident entries of classes from newest to oldest,
// skipping those after until. It returns false once fn returns false or an
// entry before since is reached.
func walk(entries []*Entry, f Filter, fn func(*Entry) bool) bool {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Time.Unix() > f.Until
	})
	for i--; i >= 0; i-- {
		e := entries[i]
		if e.Time.Unix() < f.Since {
			return false
		}
		if f.Classes&e.Class.Mask() == 0 {
			continue
		}
		if !fn(e) {
			return false
		}
	}
	return true
}

func trimNewline(line string) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return line[:n]
}
