package change

// PathMode selects how a Filter constrains record paths.
type PathMode int

const (
	// AnyPath accepts every path.
	AnyPath PathMode = iota
	// ExactPath accepts records whose path equals the filter path.
	ExactPath
	// PrefixPath accepts records at the filter path or anywhere below it.
	PrefixPath
	// ChildPath accepts records addressing direct children of the filter path.
	ChildPath
)

// Filter restricts the records delivered to one observer.
// The zero Filter accepts everything.
type Filter struct {
	Mode PathMode
	Path Path

	// Predicate, when set, must also accept the record.
	Predicate func(Record) bool
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	switch f.Mode {
	case ExactPath:
		if !r.Path.Equal(f.Path) {
			return false
		}
	case PrefixPath:
		if !r.Path.HasPrefix(f.Path) {
			return false
		}
	case ChildPath:
		if len(r.Path) != len(f.Path)+1 || !r.Path.HasPrefix(f.Path) {
			return false
		}
	}
	if f.Predicate != nil && !f.Predicate(r) {
		return false
	}
	return true
}

// Apply returns the records that pass the filter, in order.
// The result is always a fresh slice.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// IsZero reports whether the filter accepts everything.
func (f Filter) IsZero() bool {
	return f.Mode == AnyPath && f.Predicate == nil
}
