package config

import "sync"

// ResetForTest drops the cached Config so the next Load re-reads
// defaults, file and environment.
func ResetForTest() {
	loaded = nil
	loadErr = nil
	loadOnce = sync.Once{}
}
