package squashfs

import (
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"
)

// ExtractorOption configures an Extractor built by NewExtractor.
type ExtractorOption func(*Extractor)

// WithoutMetadata disables chmod/chown/xattr application entirely. Unlike
// the per-call best-effort swallowing described in spec.md §7, this skips
// the calls up front; it mirrors the original tool's --no-meta flag and
// apply_meta toggle.
func WithoutMetadata() ExtractorOption {
	return func(e *Extractor) { e.applyMeta = false }
}

// WithConcurrency bounds how many regular files may have their data
// reassembled and written to the sink concurrently. The default is 1
// (fully sequential). spec.md §5 permits, but does not require, parallel
// data-block decompression across files as a local optimization; values
// above 1 exercise that allowance. n <= 0 is ignored.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// Extractor implements C9, the driver: it walks an open image from its
// root inode and replays directories, files, symlinks and other nodes onto
// a Sink, collecting ExtractStats along the way.
type Extractor struct {
	sb   *Superblock
	sink Sink

	applyMeta   bool
	concurrency int

	Stats *ExtractStats
}

// NewExtractor builds an Extractor over an already-open image.
func NewExtractor(sb *Superblock, sink Sink, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		sb:          sb,
		sink:        sink,
		applyMeta:   true,
		concurrency: 1,
		Stats:       newExtractStats(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// walkItem is one unit of work on the explicit worklist that replaces
// recursion for the directory walk (spec.md §9: "implementers may switch
// to an explicit worklist to bound stack depth on adversarial inputs").
type walkItem struct {
	ino     *Inode
	relPath string
	depth   int
}

// Run walks the whole image and writes it to the sink. It returns the
// first structural error encountered (per spec.md §7, these abort the
// entire extraction); best-effort metadata failures are logged, not
// returned.
func (e *Extractor) Run() error {
	root, err := e.sb.root()
	if err != nil {
		return err
	}

	var files []walkItem
	queue := []walkItem{{ino: root, relPath: ""}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		e.Stats.bumpDepth(item.depth)

		switch {
		case item.ino.IsDir():
			children, err := e.extractDir(item.ino, item.relPath)
			if err != nil {
				return err
			}
			for _, c := range children {
				c.depth = item.depth + 1
				queue = append(queue, c)
			}

		case item.ino.Type.Basic() == FileType:
			files = append(files, item)

		case item.ino.Type.IsSymlink():
			if err := e.extractSymlink(item.ino, item.relPath); err != nil {
				return err
			}

		default:
			if err := e.extractOther(item.ino, item.relPath); err != nil {
				return err
			}
		}
	}

	return e.extractFiles(files)
}

// extractDir creates the directory itself, applies its metadata, and
// returns its children (still undecoded into the walk order, but with
// inodes already resolved) for the caller to enqueue.
func (e *Extractor) extractDir(ino *Inode, rel string) ([]walkItem, error) {
	e.Stats.addDir()

	if err := e.sink.Mkdir(rel); err != nil {
		return nil, fmt.Errorf("%w: mkdir %q: %w", ErrIoError, rel, err)
	}
	e.applyMetadata(ino, rel)

	dr, err := e.sb.dirReader(ino, nil)
	if err != nil {
		return nil, err
	}

	var children []walkItem
	for {
		name, _, ref, err := dr.nextfull()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		safe, err := sanitizeEntryName(name)
		if err != nil {
			return nil, err
		}

		child, err := e.sb.GetInodeRef(ref)
		if err != nil {
			return nil, err
		}
		e.sb.setInodeRefCache(child.Ino, ref)

		children = append(children, walkItem{ino: child, relPath: path.Join(rel, safe)})
	}

	return children, nil
}

// sanitizeEntryName implements spec.md §4.9's path-safety rule: strip path
// separators (both kinds) and keep only the basename, so a crafted entry
// name like "../evil" or "a/b" cannot escape the output root. A name that
// reduces to nothing meaningful ("", ".", "..") is a BadImage condition.
func sanitizeEntryName(name string) (string, error) {
	clean := strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(clean, "/")
	base := parts[len(parts)-1]

	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: illegal directory entry name %q", ErrBadImage, name)
	}
	return base, nil
}

// extractFiles reassembles and writes every regular file, up to
// e.concurrency at a time.
func (e *Extractor) extractFiles(items []walkItem) error {
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, it := range items {
		it := it
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := e.extractFile(it.ino, it.relPath); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// extractFile reassembles a regular file's content (C7, via Inode.ReadAt)
// and writes it whole to the sink. spec.md §5 permits streaming block by
// block instead; this implementation holds the file in memory, which is
// simpler and matches the teacher's io.ReaderAt-backed File type.
func (e *Extractor) extractFile(ino *Inode, rel string) error {
	data := make([]byte, ino.Size)
	if ino.Size > 0 {
		if _, err := ino.ReadAt(data, 0); err != nil && err != io.EOF {
			return err
		}
	}

	if err := e.sink.WriteFile(rel, data); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrIoError, rel, err)
	}

	hasFrag := ino.FragBlock != noFrag
	e.Stats.addFile(uint64(len(data)), ino.FragBlock, hasFrag)
	e.applyMetadata(ino, rel)
	return nil
}

// extractSymlink creates a symlink to the raw target text, falling back to
// a text placeholder whenever the sink's Symlink call returns an error
// (spec.md §4.9 "degrade gracefully").
func (e *Extractor) extractSymlink(ino *Inode, rel string) error {
	e.Stats.addSymlink()

	target, err := ino.Readlink()
	if err != nil {
		return err
	}

	if err := e.sink.Symlink(string(target), rel); err != nil {
		placeholder := fmt.Sprintf("SYMLINK -> %s\n", target)
		if werr := e.sink.WriteFile(rel, []byte(placeholder)); werr != nil {
			return fmt.Errorf("%w: symlink placeholder %q: %w", ErrIoError, rel, werr)
		}
	}

	e.applyMetadata(ino, rel)
	return nil
}

// extractOther writes a ".unsupported" placeholder documenting the inode
// type for device, fifo and socket nodes (basic and extended).
func (e *Extractor) extractOther(ino *Inode, rel string) error {
	e.Stats.addOther()

	msg := fmt.Sprintf("Unsupported inode type %d\n", ino.Type)
	if err := e.sink.WriteFile(rel+".unsupported", []byte(msg)); err != nil {
		return fmt.Errorf("%w: placeholder %q: %w", ErrIoError, rel, err)
	}
	return nil
}

// applyMetadata resolves uid/gid, permission bits, and xattrs and hands
// them to the sink, best-effort: a failure here is logged and never
// propagated (spec.md §7: "best-effort operations ... surface as warnings
// and never abort").
func (e *Extractor) applyMetadata(ino *Inode, rel string) {
	if !e.applyMeta {
		return
	}

	if err := e.sink.Chmod(rel, uint32(ino.Perm)); err != nil {
		log.Printf("squashfs: chmod %q: %s", rel, err)
	}

	uid, uerr := e.sb.ResolveId(ino.UidIdx)
	gid, gerr := e.sb.ResolveId(ino.GidIdx)
	if uerr != nil || gerr != nil {
		log.Printf("squashfs: resolving owner for %q: uid=%v gid=%v", rel, uerr, gerr)
	} else if err := e.sink.Chown(rel, int(uid), int(gid)); err != nil {
		log.Printf("squashfs: chown %q: %s", rel, err)
	}

	if ino.XattrIdx == NoXattr {
		return
	}
	pairs, err := e.sb.Xattrs(ino.XattrIdx)
	if err != nil {
		log.Printf("squashfs: reading xattrs for %q: %s", rel, err)
		return
	}
	for _, p := range pairs {
		if err := e.sink.Setxattr(rel, p.Name, p.Value); err != nil {
			// Host may lack xattr support, run unprivileged, or reject the
			// namespace: all non-fatal per spec.md §7.
			continue
		}
	}
}
