/*
Package httprecorder captures the requests arriving at a test server, so a test
can check what a client actually sent over the wire.

It is the server side counterpart of the recorder package, which only notes where
requests went.
*/
package httprecorder
