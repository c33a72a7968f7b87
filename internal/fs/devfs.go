package fs

import (
	"fmt"
	"os"
	"sync"
	"time"

	"devfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// MountOptions configures the FUSE connection.
type MountOptions struct {
	AllowOther bool
}

// DevFS serves a Controller over FUSE.
type DevFS struct {
	ctrl *Controller
	opts MountOptions
	conn *fuse.Conn
	done chan struct{}
	mu   sync.Mutex
}

// NewDevFS creates a filesystem serving ctrl.
func NewDevFS(ctrl *Controller, opts MountOptions) *DevFS {
	return &DevFS{ctrl: ctrl, opts: opts}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (d *DevFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: d, path: NewVirtualPath("/")}, nil
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem and serves requests in the background.
func (d *DevFS) Mount(mountPoint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	vfsLogger.Info("Mounting device filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)

	if d.conn != nil {
		return fmt.Errorf("already mounted")
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("devfs"),
		fuse.Subtype("devfs"),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
		fuse.AllowNonEmptyMount(),
	}
	if d.opts.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	d.conn = c
	d.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := fusefs.Serve(c, d); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
		d.serveExited(c)
	}(d.done)

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// serveExited forgets c once its serve loop returns, so a later Unmount
// after an external unmount is a no-op.
func (d *DevFS) serveExited(c *fuse.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != c {
		return
	}
	if err := c.Close(); err != nil {
		vfsLogger.Debug("Closing FUSE connection: %v", err)
	}
	d.conn = nil
	vfsLogger.Info("FUSE server stopped, filesystem no longer mounted")
}

// Done is closed when the serve loop exits, for example after an
// external unmount.
func (d *DevFS) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Unmount cleanly unmounts the filesystem.
func (d *DevFS) Unmount(mountPoint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if d.conn == nil {
		return nil
	}

	if err := fuse.Unmount(mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	if err := d.conn.Close(); err != nil {
		vfsLogger.Warn("Closing FUSE connection: %v", err)
	}
	d.conn = nil
	vfsLogger.Info("Unmount completed successfully")
	return nil
}
