package closer_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/circleci/liverequests/closer"
)

func ExampleErrorHandler() {
	dir, err := os.MkdirTemp("", "closer")
	if err != nil {
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "report.txt")
	if err := write(path, "api.example.com: 2\n"); err != nil {
		os.Exit(1)
	}

	b, _ := os.ReadFile(path)
	fmt.Print(string(b))

	// output: api.example.com: 2
}

func write(path, report string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closer.ErrorHandler(f, &err)

	_, err = io.WriteString(f, report)
	return err
}
