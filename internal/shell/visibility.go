package shell

import "sync"

// Visibility is the tab's document visibility state
type Visibility struct {
	mu       sync.RWMutex
	visible  bool
	watchers map[uint64]chan bool
	next     uint64
}

// NewVisibility creates a visibility state
func NewVisibility(visible bool) *Visibility {
	return &Visibility{visible: visible, watchers: make(map[uint64]chan bool)}
}

// Visible reports the current state
func (v *Visibility) Visible() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible
}

// Set changes the state and notifies watchers. It reports whether the
// state changed.
func (v *Visibility) Set(visible bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.visible == visible {
		return false
	}
	v.visible = visible
	for _, ch := range v.watchers {
		select {
		case ch <- visible:
		default:
		}
	}
	return true
}

// Watch streams state transitions until the returned func is called
func (v *Visibility) Watch() (<-chan bool, func()) {
	ch := make(chan bool, 4)

	v.mu.Lock()
	key := v.next
	v.next++
	v.watchers[key] = ch
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, key)
			v.mu.Unlock()
		})
	}
}
