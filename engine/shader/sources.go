package shader

import (
	"embed"
	"errors"
	"io/fs"
)

//go:embed assets
var assets embed.FS

// DefaultSource returns the compiled-in shader bundle. It holds one source per program stage
// (<program>.vert.wgsl, <program>.frag.wgsl or <program>.comp.wgsl), the include snippets under
// include/ and the fallback sources under fallback/.
//
// Returns:
//   - fs.FS: the embedded bundle rooted at its top directory
func DefaultSource() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		// "assets" is a valid path, fs.Sub cannot fail here.
		panic(err)
	}
	return sub
}

// layeredFS resolves a path against each layer in order and returns the first match.
type layeredFS []fs.FS

func (l layeredFS) Open(name string) (fs.File, error) {
	for _, layer := range l {
		if layer == nil {
			continue
		}
		f, err := layer.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
