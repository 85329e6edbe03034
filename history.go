// history.go — the incremental-position zipper backing every pipeline stage
//
// WHAT THIS MODULE DOES
// =====================
// A History[T] is a cursor over an ordered sequence of computed items. The
// cursor splits the sequence into a validated left part ("past") and a
// previously-valid right part ("future") that is at risk of invalidation.
// Each item is associated with the raw input it was computed from; raw
// inputs are how Sync decides what survived an edit.
//
// The operations are deliberately few:
//
//	Cursor     item immediately at the boundary (head of future), if any
//	Forward    validate one future item (promote to past)
//	Backward   put the newest past item back at risk
//	Insert     place a fresh item at the cursor and DROP the entire future
//	Sync       reconcile against a desired raw-input sequence: the matching
//	           prefix is kept without recomputation, everything from the
//	           first divergence on is computed fresh
//	Truncate   drop the future (used when the buffer ends before reaching it)
//
// Insert drops the future because every later item's derived state depended
// on positional and environmental continuity; after an edit point none of it
// can be assumed valid. Sync is the cheap path that re-establishes validity
// for suffixes whose raw input turned out to be byte-identical — but only up
// to the first divergence, since positions shift beyond it.
//
// FAILURE POLICY
// ==============
// ErrAtBoundary (errors.go) is the only condition that originates here and
// it is recoverable by design: commands test for it rather than report it.
//
// CONCURRENCY
// ===========
// None. A History is owned by exactly one session and mutated in place;
// ownership transfers command-by-command with the session state.

package merlin

// History is a zipper over items of type T. The zero value is not usable;
// construct with NewHistory so the raw-input extractor is set.
type History[T any] struct {
	raw    func(T) string
	past   []T
	future []T
}

// NewHistory returns an empty history whose items expose their raw input
// through raw. The extractor must be pure: Sync compares its results
// byte-for-byte.
func NewHistory[T any](raw func(T) string) *History[T] {
	return &History[T]{raw: raw}
}

// Cursor returns the item immediately at the boundary (the next item that
// Forward would validate). ok is false at the right end.
func (h *History[T]) Cursor() (item T, ok bool) {
	if len(h.future) == 0 {
		var zero T
		return zero, false
	}
	return h.future[0], true
}

// Forward moves the split point one item to the right.
func (h *History[T]) Forward() error {
	if len(h.future) == 0 {
		return ErrAtBoundary
	}
	h.past = append(h.past, h.future[0])
	h.future = h.future[1:]
	return nil
}

// Backward moves the split point one item to the left.
func (h *History[T]) Backward() error {
	if len(h.past) == 0 {
		return ErrAtBoundary
	}
	last := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append([]T{last}, h.future...)
	return nil
}

// Insert places item at the cursor and discards the entire future.
func (h *History[T]) Insert(item T) {
	h.past = append(h.past, item)
	h.future = nil
}

// Truncate drops the future, keeping the validated past.
func (h *History[T]) Truncate() { h.future = nil }

// Sync reconciles the history against desired raw inputs. Items whose raw
// input matches the corresponding desired entry are kept as-is (no
// recomputation, object identity preserved); the first divergence truncates
// everything from that point and the remaining desired entries are computed
// fresh via compute. After Sync the whole sequence is validated: the cursor
// sits at the right end and the future is empty.
//
// The returned index is the first position that was recomputed; it equals
// len(desired) when the histories already agreed (idempotent case).
func (h *History[T]) Sync(desired []string, compute func(i int, raw string) T) int {
	items := h.items()
	k := 0
	for k < len(desired) && k < len(items) && h.raw(items[k]) == desired[k] {
		k++
	}
	kept := items[:k:k]
	for i := k; i < len(desired); i++ {
		kept = append(kept, compute(i, desired[i]))
	}
	h.past = kept
	h.future = nil
	return k
}

// PastLen reports how many items are validated (left of the cursor).
func (h *History[T]) PastLen() int { return len(h.past) }

// Len reports the total number of items, validated or at risk.
func (h *History[T]) Len() int { return len(h.past) + len(h.future) }

// At returns the i-th item of the full past++future sequence.
func (h *History[T]) At(i int) (item T, ok bool) {
	items := h.items()
	if i < 0 || i >= len(items) {
		var zero T
		return zero, false
	}
	return items[i], true
}

// Items returns a copy of past++future in document order.
func (h *History[T]) Items() []T {
	return append([]T(nil), h.items()...)
}

// Past returns a copy of the validated items.
func (h *History[T]) Past() []T { return append([]T(nil), h.past...) }

func (h *History[T]) items() []T {
	if len(h.future) == 0 {
		return h.past
	}
	out := make([]T, 0, len(h.past)+len(h.future))
	out = append(out, h.past...)
	out = append(out, h.future...)
	return out
}
