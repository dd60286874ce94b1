package games

import "sync"

// keyLock serializes work per key; entries are dropped when unused.
type keyLock struct {
    mu sync.Mutex
    m  map[string]*keyLockEntry
}

type keyLockEntry struct {
    mu   sync.Mutex
    refs int
}

func (k *keyLock) lock(key string) (unlock func()) {
    k.mu.Lock()
    if k.m == nil { k.m = make(map[string]*keyLockEntry) }
    e := k.m[key]
    if e == nil {
        e = &keyLockEntry{}
        k.m[key] = e
    }
    e.refs++
    k.mu.Unlock()

    e.mu.Lock()
    return func() {
        e.mu.Unlock()
        k.mu.Lock()
        e.refs--
        if e.refs == 0 { delete(k.m, key) }
        k.mu.Unlock()
    }
}
