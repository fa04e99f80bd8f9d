package cache

// set is a fixed-capacity slot array: associativity slots, each holding one
// Tag and one data block of lineSize bytes. Replacement is round-robin via
// nextReplace, which advances on every call to replace regardless of which
// slot held a valid line.
//
// Invariant: tags in a set are pairwise distinct when valid. The cache that
// owns a set is responsible for not calling replace with a tag already
// present; lookups always precede replacement on the hot path, so this is
// upheld by construction.
type set struct {
	tags        []Tag
	data        [][]byte
	lineSize    int
	nextReplace int
}

func newSet(associativity, lineSize int) *set {
	s := &set{
		tags:     make([]Tag, associativity),
		data:     make([][]byte, associativity),
		lineSize: lineSize,
	}

	for i := range s.tags {
		s.tags[i] = emptyTag()
		s.data[i] = make([]byte, lineSize)
	}

	return s
}

func (s *set) associativity() int {
	return len(s.tags)
}

// find returns the slot index holding tagBits, if any.
func (s *set) find(tagBits uint64) (index int, ok bool) {
	for i, t := range s.tags {
		if t.IsValid() && t.bits == tagBits {
			return i, true
		}
	}

	return -1, false
}

func (s *set) invalidate(tagBits uint64) bool {
	index, ok := s.find(tagBits)
	if !ok {
		return false
	}

	s.tags[index] = emptyTag()

	return true
}

func (s *set) readLine(index, offset int, out []byte) {
	copy(out, s.data[index][offset:offset+len(out)])
}

func (s *set) writeLine(index, offset int, in []byte) {
	copy(s.data[index][offset:offset+len(in)], in)
}

// replace evicts the slot at the round-robin pointer, copies fillData into
// it under newTag (zeroing it when fillData is nil), and advances the
// pointer. It reports the
// evicted tag and a copy of its data whenever the victim slot was valid;
// callers that don't care about the eviction can ignore those return
// values.
func (s *set) replace(newTag Tag, fillData []byte) (index int, evicted bool, evictedTag Tag, evictedData []byte) {
	index = s.nextReplace

	if s.tags[index].IsValid() {
		evicted = true
		evictedTag = s.tags[index]
		evictedData = append([]byte(nil), s.data[index]...)
	}

	s.tags[index] = newTag
	if fillData != nil {
		copy(s.data[index], fillData)
	} else {
		clear(s.data[index])
	}

	s.nextReplace = (index + 1) % len(s.tags)

	return index, evicted, evictedTag, evictedData
}

// grow appends extra empty slots, preserving every existing slot's tag and
// data unchanged.
func (s *set) grow(extra int) {
	for i := 0; i < extra; i++ {
		s.tags = append(s.tags, emptyTag())
		s.data = append(s.data, make([]byte, s.lineSize))
	}
}

// shrink truncates the set down to newAssoc slots. Callers must only invoke
// this when dropping the truncated slots' data is known to be safe.
func (s *set) shrink(newAssoc int) {
	s.tags = s.tags[:newAssoc]
	s.data = s.data[:newAssoc]

	if s.nextReplace >= newAssoc {
		s.nextReplace = 0
	}
}
