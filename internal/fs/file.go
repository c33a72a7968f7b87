package fs

import (
	"context"

	"devfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is a component or pseudo file.
type File struct {
	fs   *DevFS
	path *VirtualPath
}

// Attr reports the component attributes resolved by the controller.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	attr, err := f.fs.ctrl.GetAttributes(f.path.String())
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attr)
	fileLogger.Trace("File attributes for %q: mode=%v, size=%d", f.path, a.Mode, a.Size)
	return nil
}

// Open implements the NodeOpener interface. Content is served with
// direct IO so reads always reach the controller.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening file %q with flags %v", f.path, req.Flags)
	if err := f.fs.ctrl.Open(f.path.String()); err != nil {
		return nil, ToFuseError(err)
	}
	resp.Flags |= fuse.OpenDirectIO
	return &FileHandle{file: f}, nil
}

// Setattr implements the NodeSetattrer interface for truncation and
// timestamp updates. Mode and ownership follow the model and are not
// settable.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		fileLogger.Debug("Truncating %q to %d bytes", f.path, req.Size)
		if err := f.fs.ctrl.Truncate(f.path.String(), req.Size); err != nil {
			return ToFuseError(err)
		}
	}
	if atime, mtime, ok := requestedTimes(req); ok {
		if err := f.fs.ctrl.UpdateTimestamps(f.path.String(), atime, mtime); err != nil {
			return ToFuseError(err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

// Fsync implements the NodeFsyncer interface. Content lives in memory
// and the document is written synchronously, so there is nothing to do.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

// FileHandle is an open component or pseudo file.
type FileHandle struct {
	file *File
}

// Read implements the HandleReader interface.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from file %q at offset %d", req.Size, fh.file.path, req.Offset)
	data, err := fh.file.fs.ctrl.Read(fh.file.path.String(), req.Size, req.Offset)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Data = data
	return nil
}

// Write implements the HandleWriter interface.
func (fh *FileHandle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to file %q at offset %d", len(req.Data), fh.file.path, req.Offset)
	n, err := fh.file.fs.ctrl.Write(fh.file.path.String(), req.Data, req.Offset)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Size = n
	return nil
}

// Flush implements the HandleFlusher interface.
func (fh *FileHandle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	return nil
}

// Release implements the HandleReleaser interface.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fileLogger.Trace("Closing file %q", fh.file.path)
	return nil
}
