package value

// List is a dense ordered sequence of values.
type List struct {
	Elems []Value
}

// NewList creates a List from elems (not copied).
func NewList(elems []Value) *List {
	return &List{Elems: elems}
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.Elems) }

// At returns the element at index i.
func (l *List) At(i int) Value { return l.Elems[i] }
