package internal

// EntityStream is a finite, forward-only, single-pass sequence of entities.
// It follows the bufio.Scanner shape: Next advances, Entity returns the
// current element, Err reports the first producer error. A consumed stream
// is restarted only by re-invoking its producer.
type EntityStream struct {
	next func() (*Entity, bool, error)
	cur  *Entity
	err  error
	done bool
}

func NewEntityStream(next func() (*Entity, bool, error)) *EntityStream {
	return &EntityStream{next: next}
}

// EntitySlice wraps an already-built slice in a one-shot stream.
func EntitySlice(entities []*Entity) *EntityStream {
	i := 0
	return NewEntityStream(func() (*Entity, bool, error) {
		if i >= len(entities) {
			return nil, false, nil
		}
		e := entities[i]
		i++
		return e, true, nil
	})
}

func (s *EntityStream) Next() bool {
	if s.done {
		return false
	}
	e, ok, err := s.next()
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	s.cur = e
	return true
}

func (s *EntityStream) Entity() *Entity {
	return s.cur
}

func (s *EntityStream) Err() error {
	return s.err
}

// Collect drains the stream into a slice, for tests and one-off commands.
func (s *EntityStream) Collect() ([]*Entity, error) {
	var out []*Entity
	for s.Next() {
		out = append(out, s.Entity())
	}
	return out, s.Err()
}
