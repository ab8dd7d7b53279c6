package squashfs

import "sync"

// onceErr runs a fallible initializer exactly once and replays its error
// (or success) to every caller, used by the lazily-loaded lookup tables
// (id table, fragment table, xattr tables) described in spec.md §4.4: "all
// three loaders are lazy (computed on first use) and cache their results".
type onceErr struct {
	once sync.Once
	err  error
}

func (o *onceErr) do(f func() error) error {
	o.once.Do(func() { o.err = f() })
	return o.err
}
