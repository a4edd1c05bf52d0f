package sqlx

import "github.com/dogmatiq/courier/internal/x/panicx"

// Must panics if err is non-nil. The panic is converted back into an error by
// Recover().
func Must(err error) {
	panicx.Must(err)
}

// Recover assigns the error that caused a panic within this package's
// functions to *err. It must be called directly by a defer statement.
func Recover(err *error) {
	panicx.Catch(recover(), err)
}
