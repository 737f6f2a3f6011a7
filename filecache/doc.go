// Package filecache keeps a bounded set of open file handles.
//
// Package objects are read lazily, long after their tables were parsed,
// so every package needs a handle to its file for the lifetime of the
// process. Holding one descriptor per package does not scale to a game
// directory with hundreds of files. The cache hands out shared handles
// keyed by path, keeps the most recently used ones open and closes the
// least recently used handle when a new file would exceed the capacity.
//
// # Basic Usage
//
//	cache, err := filecache.New(afero.NewOsFs(), filecache.DefaultCapacity)
//	f, err := cache.Get("/games/unreal/System/Engine.u")
//
// Handles returned by Get stay owned by the cache. Callers must finish
// using a handle before the next Get, which may evict it.
package filecache
