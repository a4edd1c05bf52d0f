// Package panicx supports code that reports errors by panicking, so that deep
// call chains (such as data-store operations) need not check every error.
package panicx

// Sentinel is the panic value used by Must(). It distinguishes errors raised
// deliberately from any other panic.
type Sentinel struct {
	Cause error
}

// Must panics with a Sentinel if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(Sentinel{err})
	}
}

// Catch assigns the cause of a Sentinel panic to *err.
//
// v is the result of calling recover(). Catch re-panics if v is any value
// other than nil or a Sentinel.
func Catch(v interface{}, err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	switch v := v.(type) {
	case nil:
	case Sentinel:
		*err = v.Cause
	default:
		panic(v)
	}
}
