/*
Package closer keeps the error from a deferred Close, such as the one closing a
report file, from being lost.
*/
package closer

import "io"

// ErrorHandler closes c, storing the error in *in unless *in already holds one.
func ErrorHandler(c io.Closer, in *error) {
	cerr := c.Close()
	if *in == nil {
		*in = cerr
	}
}
