package fs

import (
	"path"
	"strings"

	"devfs/internal/logging"
	"devfs/internal/naming"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// VirtualPath is an absolute path in the mounted tree. The leaf may be a
// real name carrying the structured suffix; Display strips it.
type VirtualPath struct {
	// always starts with /
	path string
}

// NewVirtualPath creates a new VirtualPath instance.
// It cleans the path and ensures it's absolute.
func NewVirtualPath(p string) *VirtualPath {
	cleaned := path.Clean("/" + p)
	pathLogger.Trace("Creating new virtual path: %q -> %q", p, cleaned)
	return &VirtualPath{path: cleaned}
}

// String returns the string representation of the path
func (vp *VirtualPath) String() string {
	return vp.path
}

// Parent returns a VirtualPath representing the parent directory
func (vp *VirtualPath) Parent() *VirtualPath {
	return &VirtualPath{path: path.Dir(vp.path)}
}

// Base returns the last element of the path
func (vp *VirtualPath) Base() string {
	return path.Base(vp.path)
}

// IsRoot returns true if this is the root path "/"
func (vp *VirtualPath) IsRoot() bool {
	return vp.path == "/"
}

// Join returns the child path name below vp.
func (vp *VirtualPath) Join(name string) *VirtualPath {
	return NewVirtualPath(vp.path + "/" + name)
}

// DisplayBase returns the leaf with any structured suffix stripped. Leaves
// without exactly two separators are already display names.
func (vp *VirtualPath) DisplayBase() string {
	base := vp.Base()
	if naming.IsStructured(base) {
		return naming.DisplayName(base)
	}
	return base
}

// Display returns the path with the structured suffix of the leaf
// stripped.
func (vp *VirtualPath) Display() *VirtualPath {
	if vp.IsRoot() {
		return vp
	}
	return vp.Parent().Join(vp.DisplayBase())
}

// Depth returns the number of segments below the root.
func (vp *VirtualPath) Depth() int {
	if vp.IsRoot() {
		return 0
	}
	return strings.Count(vp.path, "/")
}

// Device returns the first segment, the device a path belongs to.
func (vp *VirtualPath) Device() string {
	trimmed := strings.TrimPrefix(vp.path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
