package target

import "fmt"

// Collection is the arena of live instances, one slot per kind. It owns
// every instance for the duration of an invocation.
//
// Split hands out a kind's instance together with a view of everything
// else: the slot is vacated while the caller holds the instance, so the view
// can never reach it. Join puts it back in the same slot.
type Collection struct {
	slots []Target
}

// NewCollection returns an empty collection with n slots.
func NewCollection(n int) *Collection {
	return &Collection{slots: make([]Target, n)}
}

// Put stores t in k's slot. It fails with ErrOccupied if the slot is taken.
func (c *Collection) Put(k Kind, t Target) error {
	if c.slots[k] != nil {
		return fmt.Errorf("%w: kind %d", ErrOccupied, k)
	}
	c.slots[k] = t
	return nil
}

// Get returns k's instance, or nil when k is absent.
func (c *Collection) Get(k Kind) Target {
	if k < 0 || int(k) >= len(c.slots) {
		return nil
	}
	return c.slots[k]
}

// Has reports whether k has a live instance.
func (c *Collection) Has(k Kind) bool {
	return c.Get(k) != nil
}

// Len returns the number of live instances.
func (c *Collection) Len() int {
	n := 0
	for _, t := range c.slots {
		if t != nil {
			n++
		}
	}
	return n
}

// Split removes k's instance from its slot and returns it with the
// collection, which no longer contains k. Splitting an absent kind returns
// a nil Target and the unchanged collection.
func (c *Collection) Split(k Kind) (Target, *Collection) {
	t := c.slots[k]
	c.slots[k] = nil
	return t, c
}

// Join returns an instance obtained from Split to k's slot. Joining a nil
// Target is a no-op.
func (c *Collection) Join(k Kind, t Target) {
	if t == nil {
		return
	}
	if c.slots[k] != nil {
		panic(fmt.Sprintf("target: join into occupied slot %d", k))
	}
	c.slots[k] = t
}

// With splits k, calls fn with the instance and the view, and joins the
// instance back even if fn panics. Absent kinds are skipped.
func (c *Collection) With(k Kind, fn func(t Target, view *Collection) error) error {
	t, view := c.Split(k)
	if t == nil {
		return nil
	}
	defer c.Join(k, t)
	return fn(t, view)
}

// Lookup returns k's instance as T. The second result is false when k is
// absent or its instance does not implement T.
func Lookup[T any](c *Collection, k Kind) (T, bool) {
	v, ok := c.Get(k).(T)
	return v, ok
}
