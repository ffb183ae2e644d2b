package cli

import (
	"io"
	"os"
)

func (e *Env) defaults() {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Open == nil {
		e.Open = func(name string) (io.ReadCloser, error) { return os.Open(name) }
	}
	if e.Create == nil {
		e.Create = func(name string) (io.WriteCloser, error) { return os.Create(name) }
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// output opens path for writing, or stdout for "" and "-".
func (e *Env) output(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{e.Stdout}, nil
	}
	return e.Create(path)
}
