package store

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Dedup is a tiny TTL-bound LRU of recently seen submission keys.
type Dedup struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
	now   func() time.Time
}

type entry struct {
	key string
	exp time.Time
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 5000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Dedup{cap: maxKeys, ttl: ttl, ll: list.New(), items: make(map[string]*list.Element), now: time.Now}
}

// SubmissionKey normalizes a contact submission into a stable key. Case and
// surrounding whitespace do not make a message distinct.
func SubmissionKey(email, message string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(message)), " ")))
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dedup) seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seenLocked(key)
}

func (d *Dedup) mark(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markLocked(key)
}

// CheckAndMark reports whether key was already live and marks it either way.
func (d *Dedup) CheckAndMark(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := d.seenLocked(key)
	d.markLocked(key)
	return seen
}

// Forget drops key, e.g. when the submission it guarded failed downstream.
func (d *Dedup) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.items[key]; ok {
		d.ll.Remove(el)
		delete(d.items, key)
	}
}

func (d *Dedup) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ll.Len()
}

func (d *Dedup) seenLocked(key string) bool {
	el, ok := d.items[key]
	if !ok {
		return false
	}
	if d.now().Before(el.Value.(entry).exp) {
		d.ll.MoveToFront(el)
		return true
	}
	d.ll.Remove(el)
	delete(d.items, key)
	return false
}

func (d *Dedup) markLocked(key string) {
	now := d.now()
	if el, ok := d.items[key]; ok {
		el.Value = entry{key: key, exp: now.Add(d.ttl)}
		d.ll.MoveToFront(el)
		return
	}
	d.items[key] = d.ll.PushFront(entry{key: key, exp: now.Add(d.ttl)})
	for d.ll.Len() > d.cap {
		d.evict(d.ll.Back())
	}
	// soft cleanup of expired at tail
	for t := d.ll.Back(); t != nil && !now.Before(t.Value.(entry).exp); t = d.ll.Back() {
		d.evict(t)
	}
}

func (d *Dedup) evict(el *list.Element) {
	d.ll.Remove(el)
	delete(d.items, el.Value.(entry).key)
}
