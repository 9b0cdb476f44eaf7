// Package logcache keeps a memory bounded, time indexed view over the
// monitoring history: the watched history file plus every archived file.
package logcache

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// checkMemCycle is the number of insertions between two budget checks.
const checkMemCycle = 1000

// Source tells the cache where the history files live.
type Source interface {
	HistoryFile() string
	LogArchivePath() string
	LastLogRotation() time.Time
}

// Filter restricts a walk to lines with Since <= time <= Until (unix
// seconds) whose class bit is set in Classes.
type Filter struct {
	Since   int64
	Until   int64
	Classes uint32
}

// AllTime is a filter without time bounds.
func AllTime(classes uint32) Filter {
	return Filter{Since: math.MinInt64, Until: math.MaxInt64, Classes: classes}
}

type Options struct {
	MaxCachedMessages  int
	MaxLinesPerLogfile int
	// ArchivePattern selects archive file names, "*" when empty.
	ArchivePattern string
}

// Cache indexes the history files and loads their entries on demand. All
// methods serialize on one mutex.
type Cache struct {
	mu       sync.Mutex
	src      Source
	opts     Options
	pattern  glob.Glob
	log      logrus.FieldLogger
	now      func() time.Time
	logfiles []*Logfile // ascending by since

	numCached      int
	numAtLastCheck int
	lastIndex      time.Time
}

// New creates a cache. The index is built lazily by the first walk.
func New(src Source, opts Options, log logrus.FieldLogger) (*Cache, error) {
	if opts.ArchivePattern == "" {
		opts.ArchivePattern = "*"
	}
	g, err := glob.Compile(opts.ArchivePattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log archive pattern %q", opts.ArchivePattern)
	}
	return &Cache{src: src, opts: opts, pattern: g, log: log, now: time.Now}, nil
}

// NumCachedMessages returns the number of resident entries.
func (c *Cache) NumCachedMessages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numCached
}

// Logfiles returns the indexed files, oldest first.
func (c *Cache) Logfiles() []*Logfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
	return append([]*Logfile(nil), c.logfiles...)
}

// update rebuilds the index if the core rotated its log since the last build
// or nothing is indexed yet.
func (c *Cache) update() {
	if len(c.logfiles) > 0 && !c.src.LastLogRotation().After(c.lastIndex) {
		return
	}
	c.log.Debug("updating log file index")
	c.logfiles = nil
	c.numCached = 0
	c.numAtLastCheck = 0
	c.lastIndex = c.now()

	if path := c.src.HistoryFile(); path != "" {
		c.addToIndex(newLogfile(path, true, c.log))
	}
	if dir := c.src.LogArchivePath(); dir != "" {
		c.scanArchive(dir)
	}
	if len(c.logfiles) == 0 {
		c.log.Infof("no log file found, not even %s", c.src.HistoryFile())
	}
}

func (c *Cache) scanArchive(dir string) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		c.log.WithError(err).Warnf("cannot scan log archive %s", dir)
		return
	}
	for _, de := range ents {
		if de.IsDir() || !c.pattern.Match(de.Name()) {
			continue
		}
		c.addToIndex(newLogfile(filepath.Join(dir, de.Name()), false, c.log))
	}
}

func (c *Cache) addToIndex(lf *Logfile) {
	if lf.Since().IsZero() {
		c.log.Debugf("ignoring empty logfile %s", lf.Path())
		return
	}
	i := sort.Search(len(c.logfiles), func(i int) bool {
		return !c.logfiles[i].Since().Before(lf.Since())
	})
	if i < len(c.logfiles) && c.logfiles[i].Since().Equal(lf.Since()) {
		c.log.Warnf("ignoring duplicate logfile %s", lf.Path())
		return
	}
	c.logfiles = append(c.logfiles, nil)
	copy(c.logfiles[i+1:], c.logfiles[i:])
	c.logfiles[i] = lf
}

// ForEach walks the entries selected by f from newest to oldest and calls fn
// for each until fn returns false. The cache lock is held during the walk.
func (c *Cache) ForEach(f Filter, fn func(*Entry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
	if len(c.logfiles) == 0 || f.Classes == 0 {
		return
	}
	// newest file starting at or before until
	i := sort.Search(len(c.logfiles), func(i int) bool {
		return c.logfiles[i].Since().Unix() > f.Until
	}) - 1
	added := func(cur *Logfile) { c.lineAdded(cur, f.Classes) }
	for ; i >= 0; i-- {
		lf := c.logfiles[i]
		if !walk(lf.entriesFor(c.opts.MaxLinesPerLogfile, f.Classes, added), f, fn) {
			return
		}
	}
}

// lineAdded counts a new resident entry and enforces the budget every
// checkMemCycle insertions. current is the file being loaded, classes the
// classes the running walk needs.
func (c *Cache) lineAdded(current *Logfile, classes uint32) {
	c.numCached++
	if c.numCached <= c.opts.MaxCachedMessages || c.numCached-c.numAtLastCheck <= checkMemCycle {
		return
	}
	defer func() { c.numAtLastCheck = c.numCached }()

	pos := 0
	for pos < len(c.logfiles) && c.logfiles[pos] != current {
		pos++
	}

	// older files go first, completely
	for _, lf := range c.logfiles[:pos] {
		if lf.Size() > 0 {
			c.numCached -= lf.freeMessages(AllClasses)
			if c.withinBudget() {
				return
			}
		}
	}
	// then classes the walk does not need, from current onwards
	for _, lf := range c.logfiles[pos:] {
		if lf.Size() > 0 && lf.ClassesRead()&^classes != 0 {
			c.numCached -= lf.freeMessages(^classes)
			if c.withinBudget() {
				return
			}
		}
	}
	// then files newer than current
	if pos < len(c.logfiles) {
		for _, lf := range c.logfiles[pos+1:] {
			if lf.Size() > 0 {
				c.numCached -= lf.freeMessages(AllClasses)
				if c.withinBudget() {
					return
				}
			}
		}
	}
	c.log.Debugf("cannot reduce log cache to %d messages, %d still resident", c.opts.MaxCachedMessages, c.numCached)
}

func (c *Cache) withinBudget() bool { return c.numCached <= c.opts.MaxCachedMessages }
