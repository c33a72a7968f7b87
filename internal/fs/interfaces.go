package fs

import (
	fusefs "bazil.org/fuse/fs"
)

// attrNode is implemented by every node that reports attributes and
// accepts setattr (truncate and utimens).
type attrNode interface {
	fusefs.Node
	fusefs.NodeSetattrer
}

// deviceDir is the root or a device directory. Create and Remove cover
// both component files and, at the root, whole devices.
type deviceDir interface {
	attrNode
	fusefs.NodeStringLookuper
	fusefs.HandleReadDirAller
	fusefs.NodeMkdirer
	fusefs.NodeCreater
	fusefs.NodeRemover
}

// componentFile is a device component or a pseudo file.
type componentFile interface {
	attrNode
	fusefs.NodeOpener
	fusefs.NodeFsyncer
}

// componentHandle routes read and write to the controller's emulation.
type componentHandle interface {
	fusefs.Handle
	fusefs.HandleReader
	fusefs.HandleWriter
	fusefs.HandleFlusher
	fusefs.HandleReleaser
}

var (
	_ fusefs.FS       = (*DevFS)(nil)
	_ deviceDir       = (*Dir)(nil)
	_ componentFile   = (*File)(nil)
	_ componentHandle = (*FileHandle)(nil)
)
