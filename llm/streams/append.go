package streams

type appendStream[T any] struct {
	base    Stream[T]
	appends []T
	index   int
	inBase  bool
}

// AppendStream yields everything from base, then the given items. If base
// ends with an error the appended items are not yielded.
func AppendStream[T any](base Stream[T], items ...T) Stream[T] {
	return &appendStream[T]{base: base, appends: items, inBase: true}
}

func (s *appendStream[T]) Next() bool {
	if s.inBase {
		if s.base.Next() {
			return true
		}

		if s.base.Err() != nil {
			return false
		}

		s.inBase = false
	}

	if s.index < len(s.appends) {
		s.index++
		return true
	}

	return false
}

func (s *appendStream[T]) Current() T {
	if s.inBase {
		return s.base.Current()
	}

	if s.index > 0 && s.index <= len(s.appends) {
		return s.appends[s.index-1]
	}

	var zero T

	return zero
}

func (s *appendStream[T]) Err() error {
	return s.base.Err()
}

func (s *appendStream[T]) Close() error {
	return s.base.Close()
}
