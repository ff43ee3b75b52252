package collection

import (
	"errors"
	"reflect"
	"sync"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var ErrNotFound = errors.New("document not found")

// Entry is the latest lint result of a document.
type Entry struct {
	Text        string
	Diagnostics []lint.Diagnostic
	Fixes       []lint.FixSuggestion
}

// Collection holds the latest diagnostics per document path.
type Collection struct {
	lock    sync.RWMutex
	entries map[string]Entry
}

func New() *Collection {
	return &Collection{entries: make(map[string]Entry)}
}

// Set stores the result for path and reports whether it differs from what
// was stored before.
func (c *Collection) Set(path string, e Entry) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	prev, ok := c.entries[path]
	c.entries[path] = e
	if !ok {
		return true
	}
	return !reflect.DeepEqual(prev.Diagnostics, e.Diagnostics) || !reflect.DeepEqual(prev.Fixes, e.Fixes)
}

func (c *Collection) Delete(path string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.entries, path)
}

func (c *Collection) Use(path string, doWork func(Entry)) error {
	c.lock.RLock()
	defer c.lock.RUnlock()

	e, ok := c.entries[path]
	if !ok {
		return ErrNotFound
	}
	doWork(e)
	return nil
}

func (c *Collection) UseAll(doWork func(entries map[string]Entry)) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	doWork(c.entries)
}

// Count returns the number of diagnostics across all documents.
func (c *Collection) Count() int {
	var n int
	c.UseAll(func(entries map[string]Entry) {
		for _, e := range entries {
			n += len(e.Diagnostics)
		}
	})
	return n
}
