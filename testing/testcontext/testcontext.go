// Package testcontext gives tests a context holding a working o11y provider.
package testcontext

import (
	"context"

	"github.com/circleci/liverequests/config/o11y"
)

// ctx is built once since the beeline it sets up is a global singleton.
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Setup(context.Background(), o11y.Config{
		Format:  "text",
		Service: "liverequests-test",
		Version: "dev",
	})
	if err != nil {
		panic(err)
	}
	return cx
}
