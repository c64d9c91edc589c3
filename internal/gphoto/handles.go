package gphoto

import "sync"

// HandleTable maps Handles to native pointers for a Library binding, so
// pointers never cross into Go code as integers. Entries follow the native
// reference count: an entry disappears when its last reference is dropped,
// together with every borrowed child registered under it.
type HandleTable[P comparable] struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]*handleEntry[P]
	ids     map[P]Handle
}

type handleEntry[P comparable] struct {
	ptr      P
	refs     int
	owner    Handle
	children []Handle
}

// NewHandleTable returns an empty table.
func NewHandleTable[P comparable]() *HandleTable[P] {
	return &HandleTable[P]{
		entries: make(map[Handle]*handleEntry[P]),
		ids:     make(map[P]Handle),
	}
}

// Add registers a freshly allocated object holding one reference. A
// pointer still registered from a freed object is replaced.
func (t *HandleTable[P]) Add(p P) Handle {
	var zero P
	if p == zero {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.ids[p]; ok {
		t.remove(old)
	}
	return t.insert(p, 0)
}

// AddChild registers p as borrowed from parent, e.g. a widget returned by
// gp_widget_get_child. The same pointer always maps to the same handle
// while its owner is alive. Borrowed entries are removed with the
// top-level owner of parent.
func (t *HandleTable[P]) AddChild(parent Handle, p P) Handle {
	var zero P
	if p == zero {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.ids[p]; ok {
		return h
	}
	owner := parent
	for {
		e, ok := t.entries[owner]
		if !ok {
			// Parent unknown: the child cannot outlive anything, treat it
			// as its own owner.
			return t.insert(p, 0)
		}
		if e.owner == 0 {
			break
		}
		owner = e.owner
	}
	h := t.insert(p, owner)
	root := t.entries[owner]
	root.children = append(root.children, h)
	return h
}

func (t *HandleTable[P]) insert(p P, owner Handle) Handle {
	t.next++
	t.entries[t.next] = &handleEntry[P]{ptr: p, refs: 1, owner: owner}
	t.ids[p] = t.next
	return t.next
}

// Get returns the pointer for h, or the zero pointer if h is unknown.
func (t *HandleTable[P]) Get(h Handle) P {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[h]; ok {
		return e.ptr
	}
	var zero P
	return zero
}

// Ref records one more reference on h.
func (t *HandleTable[P]) Ref(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[h]; ok {
		e.refs++
	}
}

// Unref records a dropped reference and removes h once none remain. It
// reports whether h was removed.
func (t *HandleTable[P]) Unref(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	t.remove(h)
	return true
}

// Drop removes h regardless of its count, for objects freed outright
// (contexts, lists, cameras).
func (t *HandleTable[P]) Drop(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(h)
}

func (t *HandleTable[P]) remove(h Handle) {
	e, ok := t.entries[h]
	if !ok {
		return
	}
	delete(t.entries, h)
	if t.ids[e.ptr] == h {
		delete(t.ids, e.ptr)
	}
	for _, c := range e.children {
		t.remove(c)
	}
}

// Len returns the number of registered handles.
func (t *HandleTable[P]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
