package message

// SeenSet tracks record identities. The zero value is not usable, use
// NewSeenSet.
type SeenSet struct {
	ids map[Identity]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[Identity]struct{})}
}

// SeenSetFrom returns a set already holding the identities of records.
func SeenSetFrom(records []Record) *SeenSet {
	s := &SeenSet{ids: make(map[Identity]struct{}, len(records))}
	for _, r := range records {
		s.ids[r.Identity()] = struct{}{}
	}
	return s
}

// IsNew reports whether r's identity was absent and records it if so.
func (s *SeenSet) IsNew(r Record) bool {
	id := r.Identity()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Contains reports whether r's identity has been recorded.
func (s *SeenSet) Contains(r Record) bool {
	_, ok := s.ids[r.Identity()]
	return ok
}

// Len returns the number of distinct identities.
func (s *SeenSet) Len() int {
	return len(s.ids)
}

// Buffer accumulates the unique records of one extraction run in discovery
// order.
type Buffer struct {
	seen    *SeenSet
	records []Record
}

// NewBuffer returns an empty run buffer.
func NewBuffer() *Buffer {
	return &Buffer{seen: NewSeenSet()}
}

// Add appends r unless it is invalid or already in the buffer.
func (b *Buffer) Add(r Record) bool {
	if !r.Valid() || !b.seen.IsNew(r) {
		return false
	}
	b.records = append(b.records, r)
	return true
}

// Records returns a copy of the accumulated records.
func (b *Buffer) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of accepted records.
func (b *Buffer) Len() int {
	return len(b.records)
}
