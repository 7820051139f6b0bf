package streams

// Stream is a pull-based sequence of values. Callers advance with Next,
// read with Current, and check Err after Next returns false.
type Stream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

type sliceStream[T any] struct {
	items []T
	index int
}

// SliceStream returns a Stream that yields the given items in order.
func SliceStream[T any](items []T) Stream[T] {
	return &sliceStream[T]{items: items}
}

func (s *sliceStream[T]) Next() bool {
	if s.index < len(s.items) {
		s.index++
		return true
	}

	return false
}

func (s *sliceStream[T]) Current() T {
	if s.index > 0 && s.index <= len(s.items) {
		return s.items[s.index-1]
	}

	var zero T

	return zero
}

func (s *sliceStream[T]) Err() error {
	return nil
}

func (s *sliceStream[T]) Close() error {
	return nil
}
