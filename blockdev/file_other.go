//go:build !unix

package blockdev

import "os"

// lockFile is a no-op where advisory locks are unavailable.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
