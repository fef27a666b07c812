// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DiskCache is a Cache backed by a directory of files, one per key plus a
// ".meta" sidecar holding expiry and HTTP revalidation metadata. Values must
// be []byte; anything else is a programmer error since the cache has no way
// to (de)serialize it. Writes go to a temp file in the same directory
// followed by a rename, so a crash mid-write never leaves a corrupt entry
// for a later reader to trip over.
//
// Access is serialized per key, not cache-wide: distinct keys never block
// each other, so parallel fetches against the same DiskCache (e.g. sibling
// BOM imports resolved concurrently) still run concurrently. dirMu is only
// taken exclusively by Clear, to keep a directory wipe from racing an
// in-flight per-key read/write.
type DiskCache struct {
	Dir string
	TTL time.Duration // zero means entries never expire

	dirMu sync.RWMutex
	locks sync.Map // key (string) -> *sync.Mutex
}

// NewDiskCache returns a DiskCache rooted at dir, creating it if necessary.
func NewDiskCache(dir string, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	return &DiskCache{Dir: dir, TTL: ttl}, nil
}

// diskMeta is the on-disk sidecar, mirroring spec.md §3's disk cache-entry
// data model.
type diskMeta struct {
	StoredAt      time.Time        `json:"stored_at"`
	TTLSeconds    int64            `json:"ttl_seconds,omitempty"`
	ETag          string           `json:"etag,omitempty"`
	LastModified  string           `json:"last_modified,omitempty"`
	SourceURL     string           `json:"source_url,omitempty"`
	PayloadSize   int64            `json:"payload_size,omitempty"`
	ExtraCounters map[string]int64 `json:"extra_counters,omitempty"`
}

// ConditionalMeta is the subset of diskMeta a caller needs to perform (or
// record the result of) an HTTP conditional GET.
type ConditionalMeta struct {
	ETag         string
	LastModified string
	SourceURL    string
}

// RevalidateFunc performs the network half of a conditional fetch. prior
// holds the stale entry's revalidation headers (its zero value if there is
// no entry at all). notModified is true only when the server confirmed the
// stale entry is still current (HTTP 304), in which case value is ignored
// and the existing payload is kept; meta is persisted alongside it either
// way.
type RevalidateFunc func(prior ConditionalMeta) (value []byte, meta ConditionalMeta, notModified bool, err error)

// ConditionalCache is implemented by cache backends that support the
// two-tier cache's force-refresh / stale-revalidation contract (spec.md
// §4.2). CachedClient prefers this over the plain Cache interface whenever
// the backing cache supports it.
type ConditionalCache interface {
	GetOrSetConditional(key any, force bool, fetch RevalidateFunc) ([]byte, error)
}

func (d *DiskCache) keyLock(key string) *sync.Mutex {
	v, _ := d.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (d *DiskCache) paths(key any) (data, meta string, err error) {
	s, ok := key.(string)
	if !ok {
		return "", "", errors.Errorf("DiskCache requires string keys, got %T", key)
	}
	sum := sha256.Sum256([]byte(s))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(d.Dir, name), filepath.Join(d.Dir, name+".meta"), nil
}

// diskEntry is a raw read off disk, fresh or stale.
type diskEntry struct {
	meta  diskMeta
	value []byte
	fresh bool
}

// readEntry loads whatever is on disk for key, regardless of freshness, so
// callers that can gracefully degrade (conditional revalidation, stale
// fallback) get a chance to use it. The invariant that payloadFile exists
// iff metaFile does is enforced here: a meta sidecar with no payload is
// treated as absent and cleaned up.
func (d *DiskCache) readEntry(key any) (diskEntry, error) {
	dataPath, metaPath, err := d.paths(key)
	if err != nil {
		return diskEntry{}, err
	}
	metaBytes, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return diskEntry{}, ErrNotExist
	} else if err != nil {
		return diskEntry{}, errors.Wrap(err, "reading cache meta")
	}
	var meta diskMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return diskEntry{}, errors.Wrap(err, "parsing cache meta")
	}
	b, err := os.ReadFile(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		os.Remove(metaPath)
		return diskEntry{}, ErrNotExist
	} else if err != nil {
		return diskEntry{}, errors.Wrap(err, "reading cache entry")
	}
	fresh := d.TTL <= 0 || time.Since(meta.StoredAt) < d.TTL
	return diskEntry{meta: meta, value: b, fresh: fresh}, nil
}

// read returns the cached value for key only if it is still fresh, matching
// the plain Cache contract's "stale entries are discarded, not returned"
// invariant. Conditional/stale-aware readers use readEntry directly instead.
func (d *DiskCache) read(key any) ([]byte, error) {
	e, err := d.readEntry(key)
	if err != nil {
		return nil, err
	}
	if !e.fresh {
		return nil, ErrNotExist
	}
	return e.value, nil
}

func (d *DiskCache) writeEntry(key any, b []byte, meta diskMeta) error {
	dataPath, metaPath, err := d.paths(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(dataPath, b); err != nil {
		return errors.Wrap(err, "writing cache entry")
	}
	meta.StoredAt = time.Now()
	meta.PayloadSize = int64(len(b))
	if d.TTL > 0 {
		meta.TTLSeconds = int64(d.TTL / time.Second)
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := writeAtomic(metaPath, metaBytes); err != nil {
		return errors.Wrap(err, "writing cache meta")
	}
	return nil
}

func (d *DiskCache) write(key any, b []byte) error {
	return d.writeEntry(key, b, diskMeta{})
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Get returns the cached value for key, or ErrNotExist if absent or expired.
func (d *DiskCache) Get(key any) (any, error) {
	s, ok := key.(string)
	if !ok {
		return nil, errors.Errorf("DiskCache requires string keys, got %T", key)
	}
	d.dirMu.RLock()
	defer d.dirMu.RUnlock()
	km := d.keyLock(s)
	km.Lock()
	defer km.Unlock()
	return d.read(key)
}

// Set fetches the value and persists it to disk, overwriting any existing entry.
func (d *DiskCache) Set(key any, fetch func() (any, error)) error {
	s, ok := key.(string)
	if !ok {
		return errors.Errorf("DiskCache requires string keys, got %T", key)
	}
	d.dirMu.RLock()
	defer d.dirMu.RUnlock()
	km := d.keyLock(s)
	km.Lock()
	defer km.Unlock()
	val, err := fetch()
	if err != nil {
		return err
	}
	b, ok := val.([]byte)
	if !ok {
		return errors.Errorf("DiskCache requires []byte values, got %T", val)
	}
	return d.write(key, b)
}

// GetOrSet returns the cached value for key, fetching and persisting it on a
// miss. Locking is per key, so a miss on one URL never blocks a concurrent
// fetch of a different one -- only repeated access to the same key
// serializes, which is also where it's needed (to avoid two callers racing
// to write the same cache entry).
func (d *DiskCache) GetOrSet(key any, fetch func() (any, error)) (any, error) {
	s, ok := key.(string)
	if !ok {
		return nil, errors.Errorf("DiskCache requires string keys, got %T", key)
	}
	d.dirMu.RLock()
	defer d.dirMu.RUnlock()
	km := d.keyLock(s)
	km.Lock()
	defer km.Unlock()
	if b, err := d.read(key); err == nil {
		return b, nil
	} else if err != ErrNotExist {
		return nil, err
	}
	val, err := fetch()
	if err != nil {
		return nil, err
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, errors.Errorf("DiskCache requires []byte values, got %T", val)
	}
	if err := d.write(key, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetOrSetConditional implements spec.md §4.2's disk-tier contract: force
// skips the cache outright; a fresh entry is returned as-is; a stale entry
// is revalidated with conditional headers, and on network failure the stale
// entry is returned anyway (graceful degradation) rather than propagating
// the error.
func (d *DiskCache) GetOrSetConditional(key any, force bool, fetch RevalidateFunc) ([]byte, error) {
	s, ok := key.(string)
	if !ok {
		return nil, errors.Errorf("DiskCache requires string keys, got %T", key)
	}
	d.dirMu.RLock()
	defer d.dirMu.RUnlock()
	km := d.keyLock(s)
	km.Lock()
	defer km.Unlock()

	var prior ConditionalMeta
	var staleValue []byte
	haveStale := false
	if !force {
		e, err := d.readEntry(key)
		if err == nil {
			if e.fresh {
				return e.value, nil
			}
			prior = ConditionalMeta{ETag: e.meta.ETag, LastModified: e.meta.LastModified, SourceURL: e.meta.SourceURL}
			staleValue = e.value
			haveStale = true
		} else if err != ErrNotExist {
			return nil, err
		}
	}

	value, meta, notModified, err := fetch(prior)
	if err != nil {
		if haveStale {
			return staleValue, nil
		}
		return nil, err
	}
	if notModified {
		if !haveStale {
			return nil, errors.New("cache: server returned 304 with no stale entry to revalidate")
		}
		if err := d.writeEntry(key, staleValue, diskMeta{ETag: meta.ETag, LastModified: meta.LastModified, SourceURL: meta.SourceURL}); err != nil {
			return nil, err
		}
		return staleValue, nil
	}
	if err := d.writeEntry(key, value, diskMeta{ETag: meta.ETag, LastModified: meta.LastModified, SourceURL: meta.SourceURL}); err != nil {
		return nil, err
	}
	return value, nil
}

// Del removes the entry for key, if any.
func (d *DiskCache) Del(key any) {
	s, ok := key.(string)
	if !ok {
		return
	}
	d.dirMu.RLock()
	defer d.dirMu.RUnlock()
	km := d.keyLock(s)
	km.Lock()
	defer km.Unlock()
	dataPath, metaPath, err := d.paths(key)
	if err != nil {
		return
	}
	os.Remove(dataPath)
	os.Remove(metaPath)
}

// Clear removes every entry under Dir.
func (d *DiskCache) Clear() {
	d.dirMu.Lock()
	defer d.dirMu.Unlock()
	entries, err := os.ReadDir(d.Dir)
	if err == nil {
		for _, e := range entries {
			os.Remove(filepath.Join(d.Dir, e.Name()))
		}
	}
	d.locks = sync.Map{}
}

var _ Cache = &DiskCache{}
var _ ConditionalCache = &DiskCache{}

// TwoTierCache checks an in-memory coalescing cache before falling through to
// disk, and -- unlike HierarchicalCache, whose lower layers are read-only --
// populates both layers on a miss. That write-through is the point: a second
// process (or the same process after a restart) should find the entry on
// disk without re-fetching it from the network.
type TwoTierCache struct {
	Memory *CoalescingMemoryCache
	Disk   *DiskCache

	memAt sync.Map // key -> time.Time the conditional path filled the memory entry
}

// NewTwoTierCache returns a TwoTierCache backed by the given DiskCache.
func NewTwoTierCache(disk *DiskCache) *TwoTierCache {
	return &TwoTierCache{Memory: &CoalescingMemoryCache{}, Disk: disk}
}

// Get returns the value for key from memory, falling back to disk.
func (t *TwoTierCache) Get(key any) (any, error) {
	if val, err := t.Memory.Get(key); err == nil {
		return val, nil
	} else if err != ErrNotExist {
		return nil, err
	}
	val, err := t.Disk.Get(key)
	if err != nil {
		return nil, err
	}
	t.Memory.Set(key, func() (any, error) { return val, nil })
	return val, nil
}

// Set fetches the value once and writes it to both layers.
func (t *TwoTierCache) Set(key any, fetch func() (any, error)) error {
	var val any
	wrapped := func() (any, error) {
		v, err := fetch()
		val = v
		return v, err
	}
	if err := t.Disk.Set(key, wrapped); err != nil {
		return err
	}
	return t.Memory.Set(key, func() (any, error) { return val, nil })
}

// GetOrSet returns the cached value for key, coalescing concurrent misses and
// writing through to disk so the entry survives a process restart.
func (t *TwoTierCache) GetOrSet(key any, fetch func() (any, error)) (any, error) {
	return t.Memory.GetOrSet(key, func() (any, error) {
		return t.Disk.GetOrSet(key, fetch)
	})
}

// GetOrSetConditional mirrors GetOrSet but routes the disk miss through the
// conditional-revalidation path: memory still coalesces concurrent callers
// for the same key (spec.md §4.2 step 3/step 2's memory-hit check). A memory
// entry filled by this method is served only while it is younger than the
// disk tier's TTL; a force-refresh or an older entry is evicted before
// falling through to the disk tier, since the memory tier has no
// revalidation concept of its own.
func (t *TwoTierCache) GetOrSetConditional(key any, force bool, fetch RevalidateFunc) ([]byte, error) {
	at, filled := t.memAt.Load(key)
	if force || (filled && t.Disk.TTL > 0 && time.Since(at.(time.Time)) >= t.Disk.TTL) {
		t.Memory.Del(key)
		t.memAt.Delete(key)
	} else if val, err := t.Memory.Get(key); err == nil {
		return val.([]byte), nil
	} else if err != ErrNotExist {
		return nil, err
	}
	val, err := t.Memory.GetOrSet(key, func() (any, error) {
		v, err := t.Disk.GetOrSetConditional(key, force, fetch)
		if err == nil {
			t.memAt.Store(key, time.Now())
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return val.([]byte), nil
}

// Del removes the entry for key from both layers.
func (t *TwoTierCache) Del(key any) {
	t.Memory.Del(key)
	t.Disk.Del(key)
}

// Clear empties both layers.
func (t *TwoTierCache) Clear() {
	t.Memory.Clear()
	t.Disk.Clear()
}

var _ Cache = &TwoTierCache{}
var _ ConditionalCache = &TwoTierCache{}
