package engine

// FileOverlay maps absolute file paths to in-memory content, shadowing disk
// for unsaved editor state. Entries change only through explicit open, change,
// and close operations; nothing expires implicitly.
type FileOverlay map[string]string

// NewFileOverlay returns an empty overlay.
func NewFileOverlay() FileOverlay {
	return make(FileOverlay)
}

// Set registers or updates the content for path.
func (o FileOverlay) Set(path, content string) {
	o[path] = content
}

// Remove drops the entry for path.
func (o FileOverlay) Remove(path string) {
	delete(o, path)
}

// Clone returns an independent copy. Rebuilds operate on a clone so overlay
// mutations during a slow rebuild cannot corrupt the pass in flight.
func (o FileOverlay) Clone() FileOverlay {
	c := make(FileOverlay, len(o))
	for path, content := range o {
		c[path] = content
	}
	return c
}

// Len returns the number of overlaid paths.
func (o FileOverlay) Len() int {
	return len(o)
}
