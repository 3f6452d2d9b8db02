package hub

import "errors"

// errUnderflow reports a release on a stream with no interest. That is a
// bookkeeping bug, not a recoverable condition, and is logged loudly.
var errUnderflow = errors.New("refcount release below zero")

// refCounter tracks per-stream client interest. Streams absent from the map
// have count zero. The caller holds the hub lock.
type refCounter struct {
	counts map[string]int
}

func newRefCounter() *refCounter {
	return &refCounter{counts: make(map[string]int)}
}

// acquire increments the stream's count and reports whether it transitioned
// zero to one.
func (r *refCounter) acquire(stream string) bool {
	r.counts[stream]++
	return r.counts[stream] == 1
}

// release decrements the stream's count and reports whether it transitioned
// one to zero. Releasing an untracked stream returns errUnderflow and leaves
// the map unchanged.
func (r *refCounter) release(stream string) (bool, error) {
	n, ok := r.counts[stream]
	if !ok || n <= 0 {
		return false, errUnderflow
	}
	if n == 1 {
		delete(r.counts, stream)
		return true, nil
	}
	r.counts[stream] = n - 1
	return false, nil
}

// count returns the stream's current count.
func (r *refCounter) count(stream string) int {
	return r.counts[stream]
}

// streams returns every stream with count greater than zero.
func (r *refCounter) streams() []string {
	out := make([]string, 0, len(r.counts))
	for s := range r.counts {
		out = append(out, s)
	}
	return out
}
