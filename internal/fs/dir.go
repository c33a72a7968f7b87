package fs

import (
	"context"
	"time"

	"devfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// attrValid is how long the kernel may cache attributes. Sizes and
// pseudo file readings change behind its back, so keep it short.
const attrValid = time.Second

// Dir is the root or a device directory.
type Dir struct {
	fs   *DevFS
	path *VirtualPath
}

func fillAttr(a *fuse.Attr, attr Attr) {
	a.Valid = attrValid
	a.Mode = attr.Mode
	a.Size = attr.Size
	a.Nlink = attr.Nlink
	a.Uid = attr.Uid
	a.Gid = attr.Gid
	a.Atime = attr.Atime
	a.Mtime = attr.Mtime
	a.Ctime = attr.Ctime
	if !attr.Mode.IsDir() {
		a.BlockSize = 4096
		a.Blocks = (attr.Size + 511) / 512
	}
}

// Attr reports the device directory or root attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path)
	attr, err := d.fs.ctrl.GetAttributes(d.path.String())
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attr)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child
// node by display or real name.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.path)
	attr, err := d.fs.ctrl.GetAttributes(d.path.Join(name).String())
	if err != nil {
		return nil, ToFuseError(err)
	}

	child := NewVirtualPath(attr.Path)
	if attr.Mode.IsDir() {
		return &Dir{fs: d.fs, path: child}, nil
	}
	return &File{fs: d.fs, path: child}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path)
	list, err := d.fs.ctrl.List(d.path.String())
	if err != nil {
		return nil, ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(list))
	for _, e := range list {
		typ := fuse.DT_File
		if e.Dir {
			typ = fuse.DT_Dir
		}
		entries = append(entries, fuse.Dirent{Name: e.Name, Type: typ})
	}
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface, creating a device directory.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating directory %q in %q", req.Name, d.path)
	child := d.path.Join(req.Name)
	if err := d.fs.ctrl.CreateDirectory(child.String()); err != nil {
		dirLogger.Debug("Mkdir %q: %v", child, err)
		return nil, ToFuseError(err)
	}
	return &Dir{fs: d.fs, path: child.Display()}, nil
}

// Create implements the NodeCreater interface, creating a component file
// and opening it.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Info("Creating file %q in %q", req.Name, d.path)
	child := d.path.Join(req.Name)
	if err := d.fs.ctrl.CreateFile(child.String()); err != nil {
		dirLogger.Debug("Create %q: %v", child, err)
		return nil, nil, ToFuseError(err)
	}

	f := &File{fs: d.fs, path: child.Display()}
	resp.Flags |= fuse.OpenDirectIO
	return f, &FileHandle{file: f}, nil
}

// Remove implements the NodeRemover interface, removing a file or directory.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Info("Removing %q from directory %q (isDir=%v)", req.Name, d.path, req.Dir)
	child := d.path.Join(req.Name).String()

	var err error
	if req.Dir {
		err = d.fs.ctrl.RemoveDirectory(child)
	} else {
		err = d.fs.ctrl.RemoveFile(child)
	}
	if err != nil {
		dirLogger.Debug("Remove %q: %v", child, err)
		return ToFuseError(err)
	}
	return nil
}

// Setattr implements the NodeSetattrer interface. Only timestamps apply
// to directories.
func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if atime, mtime, ok := requestedTimes(req); ok {
		if err := d.fs.ctrl.UpdateTimestamps(d.path.String(), atime, mtime); err != nil {
			return ToFuseError(err)
		}
	}
	return d.Attr(ctx, &resp.Attr)
}

// requestedTimes extracts the timestamps a setattr request changes.
func requestedTimes(req *fuse.SetattrRequest) (atime, mtime time.Time, ok bool) {
	now := time.Now()
	switch {
	case req.Valid.AtimeNow():
		atime, ok = now, true
	case req.Valid.Atime():
		atime, ok = req.Atime, true
	}
	switch {
	case req.Valid.MtimeNow():
		mtime, ok = now, true
	case req.Valid.Mtime():
		mtime, ok = req.Mtime, true
	}
	return atime, mtime, ok
}
