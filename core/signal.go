package core

// signal is a list of handlers for one kind of event.  Components
// hold one signal per event they emit.
//
// Handlers run in registration order.  A handler removed while an
// event is being delivered doesn't see that event if it hasn't
// already.  A handler added during delivery sees the next event.
type signal[T any] struct {
	slots []*slot[T]
}

type slot[T any] struct {
	fn  func(T)
	off bool
}

// on registers the handler and returns a function that removes it.
func (s *signal[T]) on(fn func(T)) func() {
	sl := &slot[T]{fn: fn}
	s.slots = append(s.slots, sl)
	return func() {
		if sl.off {
			return
		}
		sl.off = true
		for i, x := range s.slots {
			if x == sl {
				s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
				break
			}
		}
	}
}

func (s *signal[T]) emit(x T) {
	if len(s.slots) == 0 {
		return
	}
	slots := make([]*slot[T], len(s.slots))
	copy(slots, s.slots)
	for _, sl := range slots {
		if !sl.off {
			sl.fn(x)
		}
	}
}

func (s *signal[T]) clear() {
	for _, sl := range s.slots {
		sl.off = true
	}
	s.slots = nil
}

func (s *signal[T]) size() int {
	return len(s.slots)
}
