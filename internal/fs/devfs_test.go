package fs

import (
	"path/filepath"
	"testing"

	"bazil.org/fuse"
)

func TestUnmountAfterServeExit(t *testing.T) {
	vfs, _, _, cleanup := setupTestFS(t)
	defer cleanup()

	if err := vfs.Unmount(filepath.Join(t.TempDir(), "mnt")); err != nil {
		t.Errorf("Unmount before Mount should be a no-op, got %v", err)
	}

	// Serve loop ending on its own, as after an external umount
	conn := &fuse.Conn{}
	vfs.conn = conn
	vfs.serveExited(conn)
	if vfs.conn != nil {
		t.Fatal("Connection should be forgotten once serving stops")
	}
	if err := vfs.Unmount(filepath.Join(t.TempDir(), "mnt")); err != nil {
		t.Errorf("Unmount after the serve loop exited should be a no-op, got %v", err)
	}

	// A stale exit must not drop a newer connection
	current := &fuse.Conn{}
	vfs.conn = current
	vfs.serveExited(conn)
	if vfs.conn != current {
		t.Error("Exit of an older connection should not reset the current one")
	}
	vfs.conn = nil
}
