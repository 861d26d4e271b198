package convert

// Sink collects the raw encodings of error records held by fallible source
// members that had nowhere to go in the target. Supplying a sink opts the
// caller into gathering every unplaceable error in one pass instead of
// aborting on the first.
type Sink struct {
	// Records holds one 'e'-encoded record per unplaced error, in source
	// order.
	Records [][]byte
}

func (s *Sink) add(rec []byte) {
	s.Records = append(s.Records, rec)
}

func (s *Sink) merge(o *Sink) {
	if o != nil {
		s.Records = append(s.Records, o.Records...)
	}
}

// Len returns the number of collected records.
func (s *Sink) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
