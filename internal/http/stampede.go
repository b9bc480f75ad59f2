package http

import "sync"

// stampedeTracker counts concurrent cache misses per key. A count above one
// means several requests are fetching the same upstream data at once.
type stampedeTracker struct {
	mu           sync.Mutex
	activeMisses map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{activeMisses: make(map[string]int)}
}

// begin records a miss for key and returns the number of misses for key now in progress.
// Call end when the handler has returned.
func (st *stampedeTracker) begin(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeMisses[key]++
	return st.activeMisses[key]
}

func (st *stampedeTracker) end(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.activeMisses[key] <= 1 {
		delete(st.activeMisses, key)
		return
	}
	st.activeMisses[key]--
}

func (st *stampedeTracker) active(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeMisses[key]
}
