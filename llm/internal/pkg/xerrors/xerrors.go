package xerrors

import "errors"

// As is a generic wrapper over errors.As that avoids declaring the target
// variable at the call site.
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
