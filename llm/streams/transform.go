package streams

type mapErrStream[T, U any] struct {
	source  Stream[T]
	mapper  func(T) (U, error)
	current U
	err     error
}

// MapErr transforms each element with mapper. The first mapper error stops
// the stream and is reported by Err.
func MapErr[T, U any](source Stream[T], mapper func(T) (U, error)) Stream[U] {
	return &mapErrStream[T, U]{source: source, mapper: mapper}
}

func (s *mapErrStream[T, U]) Next() bool {
	if s.err != nil {
		return false
	}

	if !s.source.Next() {
		return false
	}

	s.current, s.err = s.mapper(s.source.Current())

	return s.err == nil
}

func (s *mapErrStream[T, U]) Current() U {
	return s.current
}

func (s *mapErrStream[T, U]) Err() error {
	if s.err != nil {
		return s.err
	}

	return s.source.Err()
}

func (s *mapErrStream[T, U]) Close() error {
	return s.source.Close()
}

// Map transforms each element with mapper.
func Map[T, U any](source Stream[T], mapper func(T) U) Stream[U] {
	return MapErr(source, func(item T) (U, error) {
		return mapper(item), nil
	})
}

type filterStream[T any] struct {
	source Stream[T]
	keep   func(T) bool
}

// Filter yields only the elements for which keep returns true.
func Filter[T any](source Stream[T], keep func(T) bool) Stream[T] {
	return &filterStream[T]{source: source, keep: keep}
}

func (s *filterStream[T]) Next() bool {
	for s.source.Next() {
		if s.keep(s.source.Current()) {
			return true
		}
	}

	return false
}

func (s *filterStream[T]) Current() T {
	return s.source.Current()
}

func (s *filterStream[T]) Err() error {
	return s.source.Err()
}

func (s *filterStream[T]) Close() error {
	return s.source.Close()
}

// NoNil drops nil elements from a stream of pointers.
func NoNil[T any](source Stream[*T]) Stream[*T] {
	return Filter(source, func(item *T) bool {
		return item != nil
	})
}
