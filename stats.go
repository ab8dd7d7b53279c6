package squashfs

import "sync"

// ExtractStats accumulates the counters spec.md §4.9 asks the driver to
// maintain over one Extractor.Run call. The unexported counting methods
// lock mu, since WithConcurrency lets several regular files extract at
// once; TotalEntries and AverageNonEmptyFileSize read the counters without
// locking.
type ExtractStats struct {
	mu sync.Mutex

	Dirs     int
	Files    int
	Symlinks int
	Other    int

	TotalBytes     uint64
	FilesNonempty  int
	FragmentsUsed  map[uint32]struct{}
	MaxDepth       int
}

func newExtractStats() *ExtractStats {
	return &ExtractStats{FragmentsUsed: make(map[uint32]struct{})}
}

func (s *ExtractStats) bumpDepth(d int) {
	s.mu.Lock()
	if d > s.MaxDepth {
		s.MaxDepth = d
	}
	s.mu.Unlock()
}

func (s *ExtractStats) addDir() {
	s.mu.Lock()
	s.Dirs++
	s.mu.Unlock()
}

func (s *ExtractStats) addSymlink() {
	s.mu.Lock()
	s.Symlinks++
	s.mu.Unlock()
}

func (s *ExtractStats) addOther() {
	s.mu.Lock()
	s.Other++
	s.mu.Unlock()
}

func (s *ExtractStats) addFile(size uint64, fragIdx uint32, hasFrag bool) {
	s.mu.Lock()
	s.Files++
	s.TotalBytes += size
	if size > 0 {
		s.FilesNonempty++
	}
	if hasFrag {
		s.FragmentsUsed[fragIdx] = struct{}{}
	}
	s.mu.Unlock()
}

// TotalEntries is the sum spec.md §8 expects to equal inode_count for a
// well-formed image's reachable subtree.
func (s *ExtractStats) TotalEntries() int {
	return s.Dirs + s.Files + s.Symlinks + s.Other
}

// AverageNonEmptyFileSize is TotalBytes / FilesNonempty, 0 when no
// non-empty file was extracted.
func (s *ExtractStats) AverageNonEmptyFileSize() float64 {
	if s.FilesNonempty == 0 {
		return 0
	}
	return float64(s.TotalBytes) / float64(s.FilesNonempty)
}
