package fs

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"bazil.org/fuse"
)

func TestDirOperations(t *testing.T) {
	vfs, _, _, cleanup := setupTestFS(t)
	defer cleanup()

	ctx := context.Background()

	// Test root directory
	t.Run("RootDirectory", func(t *testing.T) {
		root, rootErr := vfs.Root()
		if rootErr != nil {
			t.Fatalf("Failed to get root: %v", rootErr)
		}

		attr := &fuse.Attr{}
		if attrErr := root.Attr(ctx, attr); attrErr != nil {
			t.Errorf("Failed to get root attributes: %v", attrErr)
		}
		if attr.Mode != os.ModeDir|0775 {
			t.Errorf("Unexpected root mode %v", attr.Mode)
		}

		dir, ok := root.(*Dir)
		if !ok {
			t.Fatal("Root should be a Dir")
		}
		entries, readErr := dir.ReadDirAll(ctx)
		if readErr != nil {
			t.Errorf("Failed to read root directory: %v", readErr)
		}
		if len(entries) != 2 {
			t.Errorf("Empty root should only list . and .., got %d entries", len(entries))
		}
	})

	// Test directory creation
	t.Run("CreateDirectory", func(t *testing.T) {
		root, _ := vfs.Root()
		dir := root.(*Dir)

		newDir, mkdirErr := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: "rover.1.1234567"})
		if mkdirErr != nil {
			t.Fatalf("Failed to create directory: %v", mkdirErr)
		}
		if newDir.(*Dir).path.String() != "/rover" {
			t.Errorf("Expected node at /rover, got %q", newDir.(*Dir).path)
		}

		foundDir, findErr := dir.Lookup(ctx, "rover")
		if findErr != nil {
			t.Fatalf("Failed to lookup new directory: %v", findErr)
		}
		attr := &fuse.Attr{}
		if err := foundDir.Attr(ctx, attr); err != nil {
			t.Errorf("Failed to get directory attributes: %v", err)
		}
		if attr.Mode&os.ModeDir == 0 {
			t.Error("Created node should be a directory")
		}

		entries, err := foundDir.(*Dir).ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read directory: %v", err)
		}
		want := map[string]fuse.DirentType{".": fuse.DT_Dir, "..": fuse.DT_Dir, "GYRO": fuse.DT_File, "GPS": fuse.DT_File, "IMEI": fuse.DT_File}
		if len(entries) != len(want) {
			t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
		}
		for _, e := range entries {
			if typ, ok := want[e.Name]; !ok || typ != e.Type {
				t.Errorf("Unexpected entry %+v", e)
			}
		}
	})

	t.Run("InvalidDirectory", func(t *testing.T) {
		root, _ := vfs.Root()
		dir := root.(*Dir)

		tests := []struct {
			name  string
			errno syscall.Errno
		}{
			{name: "plain", errno: syscall.EINVAL},
			{name: "rover.2.7654321", errno: syscall.EEXIST},
			{name: "rover.2.12", errno: syscall.EEXIST},
			{name: "probe.2.12", errno: syscall.EINVAL},
		}
		for _, tt := range tests {
			_, err := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: tt.name})
			if !errors.Is(err, tt.errno) {
				t.Errorf("Mkdir(%q): expected %v, got %v", tt.name, tt.errno, err)
			}
		}

		rover, _ := dir.Lookup(ctx, "rover")
		if _, err := rover.(*Dir).Mkdir(ctx, &fuse.MkdirRequest{Name: "probe.2.1234567"}); !errors.Is(err, syscall.EPERM) {
			t.Errorf("Nested mkdir: expected EPERM, got %v", err)
		}
	})

	t.Run("CreateFile", func(t *testing.T) {
		root, _ := vfs.Root()
		rover, err := root.(*Dir).Lookup(ctx, "rover")
		if err != nil {
			t.Fatal(err)
		}

		resp := &fuse.CreateResponse{}
		node, handle, err := rover.(*Dir).Create(ctx, &fuse.CreateRequest{Name: "motor.ACTUATOR.1"}, resp)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if node.(*File).path.String() != "/rover/motor" {
			t.Errorf("Expected node at /rover/motor, got %q", node.(*File).path)
		}
		if _, ok := handle.(*FileHandle); !ok {
			t.Error("Create should return a FileHandle")
		}
		if resp.Flags&fuse.OpenDirectIO == 0 {
			t.Error("Created files should use direct IO")
		}

		if _, _, err := root.(*Dir).Create(ctx, &fuse.CreateRequest{Name: "motor.ACTUATOR.1"}, &fuse.CreateResponse{}); !errors.Is(err, syscall.EPERM) {
			t.Errorf("Create under root: expected EPERM, got %v", err)
		}

		byReal, err := rover.(*Dir).Lookup(ctx, "motor.ACTUATOR.1")
		if err != nil {
			t.Fatalf("Lookup by real name failed: %v", err)
		}
		if byReal.(*File).path.String() != "/rover/motor" {
			t.Errorf("Real name should map to the display path, got %q", byReal.(*File).path)
		}
	})

	t.Run("SetattrTimes", func(t *testing.T) {
		root, _ := vfs.Root()
		rover, _ := root.(*Dir).Lookup(ctx, "rover")

		mtime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		req := &fuse.SetattrRequest{Valid: fuse.SetattrMtime, Mtime: mtime}
		resp := &fuse.SetattrResponse{}
		if err := rover.(*Dir).Setattr(ctx, req, resp); err != nil {
			t.Fatalf("Setattr failed: %v", err)
		}
		if !resp.Attr.Mtime.Equal(mtime) {
			t.Errorf("Expected mtime %v, got %v", mtime, resp.Attr.Mtime)
		}
	})

	// Test directory removal
	t.Run("RemoveDirectory", func(t *testing.T) {
		rmdirCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		root, _ := vfs.Root()
		dir := root.(*Dir)

		if err := dir.Remove(rmdirCtx, &fuse.RemoveRequest{Name: "rover", Dir: true}); err != nil {
			t.Fatalf("Failed to remove directory: %v", err)
		}
		if _, err := dir.Lookup(rmdirCtx, "rover"); !errors.Is(err, syscall.ENOENT) {
			t.Errorf("Expected ENOENT after removal, got %v", err)
		}
		if err := dir.Remove(rmdirCtx, &fuse.RemoveRequest{Name: "rover", Dir: true}); !errors.Is(err, syscall.ENOENT) {
			t.Errorf("Second removal: expected ENOENT, got %v", err)
		}
	})
}
