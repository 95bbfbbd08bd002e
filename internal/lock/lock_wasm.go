//go:build js && wasm

package lock

import "os"

// WASM doesn't support file locking, and is single-process anyway.

func flockExclusive(f *os.File) error {
	return nil
}

func flockUnlock(f *os.File) error {
	return nil
}
