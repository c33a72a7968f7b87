package fs

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"devfs/internal/catalog"
	"devfs/internal/metrics"
	"devfs/internal/namespace"
	"devfs/internal/naming"
	"devfs/internal/state"
)

// CreateFile creates the component file p, whose leaf must be a real
// name NAME.MODEL.SERIAL, or one of the pseudo files. Every check runs
// before the catalog entry is allocated, and a failed document write
// rolls back the namespace record and the catalog entry.
func (c *Controller) CreateFile(p string) (err error) {
	defer observe(OpCreate, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	vp := NewVirtualPath(p)
	if vp.IsRoot() {
		return failf(OpCreate, p, ErrAlreadyExists, "root directory")
	}
	parent := vp.Parent()
	leaf := vp.Base()

	if IsPseudoName(leaf) {
		return c.createPseudo(OpCreate, parent, leaf)
	}

	fn, err := naming.DecomposeFileName(leaf)
	if err != nil {
		return wrap(OpCreate, p, ErrInvalidArgument, err)
	}
	if parent.IsRoot() {
		return failf(OpCreate, p, ErrPermissionDenied, "components must live in a device directory")
	}
	if _, exists := c.store.FindFile(fn.Name, parent.String()); exists {
		return failf(OpCreate, p, ErrAlreadyExists, "%q already exists in %q", fn.Name, parent)
	}
	dir, ok := c.store.Dir(parent.String())
	if !ok {
		return failf(OpCreate, p, ErrNotFound, "no device directory %q", parent)
	}
	if err := catalog.Validate(fn.Model, "", naming.TypeFile); err != nil {
		return wrap(OpCreate, p, ErrInvalidArgument, err)
	}

	now := c.now()
	entry, err := c.catalog.Create(fn.Name, fn.Model, fn.Serial, now, "", naming.TypeFile)
	if err != nil {
		return catalogError(OpCreate, p, err)
	}

	rec := c.store.AddFile(fn.Name, parent.String())
	rec.RealName = leaf
	rec.Model = entry.Model
	rec.EntryID = entry.SystemID
	rec.Meta.Mode = modeForModel(entry.Model)

	inserted, err := c.tree.InsertChild(parent.Device(), nodeFromEntry(entry))
	if err != nil || !inserted {
		c.store.RemoveFile(fn.Name, parent.String())
		c.catalog.Remove(entry.SystemID)
		if err != nil {
			ctrlLogger.Error("Failed to persist component %q, rolled back: %v", leaf, err)
			return wrap(OpCreate, p, ErrIO, err)
		}
		ctrlLogger.Warn("Device %q missing from the document, rolled back %q", parent.Device(), leaf)
		return failf(OpCreate, p, ErrNotFound, "device %q is not in the document", parent.Device())
	}

	touch(&dir.Meta, now)
	c.updateGauges()
	ctrlLogger.Info("Created component %q in %q (model=%s, serial=%d, id=%s)",
		fn.Name, parent, entry.Model, entry.SerialNumber, entry.SystemID)
	return nil
}

// createPseudo adds the pseudo file name to the device directory parent.
func (c *Controller) createPseudo(op string, parent *VirtualPath, name string) error {
	p := parent.Join(name).String()
	if parent.IsRoot() {
		return failf(op, p, ErrPermissionDenied, "pseudo files only exist in device directories")
	}
	if _, exists := c.store.FindFile(name, parent.String()); exists {
		return failf(op, p, ErrAlreadyExists, "pseudo file %q already exists", name)
	}
	if _, ok := c.store.Dir(parent.String()); !ok {
		return failf(op, p, ErrNotFound, "no device directory %q", parent)
	}

	rec := c.store.AddFile(name, parent.String())
	rec.Pseudo = true
	rec.Meta.Mode = pseudoMode
	ctrlLogger.Trace("Created pseudo file %q", p)
	return nil
}

// CreateDirectory creates the device directory p directly below the root.
// The leaf must be a real name NAME.SERIAL.IMEI; the directory is exposed
// as NAME together with its pseudo files.
func (c *Controller) CreateDirectory(p string) (err error) {
	defer observe(OpMkdir, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	vp := NewVirtualPath(p)
	if vp.IsRoot() {
		return failf(OpMkdir, p, ErrAlreadyExists, "root directory")
	}
	if vp.Depth() > 1 {
		return failf(OpMkdir, p, ErrPermissionDenied, "devices can only be created below the root")
	}

	dn, err := naming.DecomposeDirName(vp.Base())
	if err != nil {
		return wrap(OpMkdir, p, ErrInvalidArgument, err)
	}
	display := vp.Display()
	if _, exists := c.store.Dir(display.String()); exists {
		return failf(OpMkdir, p, ErrAlreadyExists, "device %q already exists", dn.Name)
	}
	if err := catalog.Validate(naming.FolderModel, dn.IMEI, naming.TypeFolder); err != nil {
		return wrap(OpMkdir, p, ErrInvalidArgument, err)
	}

	now := c.now()
	entry, err := c.catalog.Create(dn.Name, naming.FolderModel, dn.Serial, now, dn.IMEI, naming.TypeFolder)
	if err != nil {
		return catalogError(OpMkdir, p, err)
	}

	rec := c.store.AddDir(display.String())
	rec.EntryID = entry.SystemID

	if err := c.tree.InsertRoot(nodeFromEntry(entry)); err != nil {
		if i, ok := c.store.FindDir(display.String()); ok {
			c.store.RemoveDir(i)
		}
		c.catalog.Remove(entry.SystemID)
		ctrlLogger.Error("Failed to persist device %q, rolled back: %v", dn.Name, err)
		return wrap(OpMkdir, p, ErrIO, err)
	}

	for _, name := range PseudoNames {
		if err := c.createPseudo(OpMkdir, display, name); err != nil {
			ctrlLogger.Warn("Pseudo file setup for %q: %v", display, err)
		}
	}

	if root, ok := c.store.Dir("/"); ok {
		touch(&root.Meta, now)
	}
	c.updateGauges()
	ctrlLogger.Info("Created device %q (serial=%d, imei=%s, id=%s)",
		dn.Name, dn.Serial, dn.IMEI, entry.SystemID)
	return nil
}

// RemoveDirectory removes the device directory p with its pseudo files,
// its components and their document and catalog entries.
func (c *Controller) RemoveDirectory(p string) (err error) {
	defer observe(OpRmdir, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.resolve(p)
	switch r.kind {
	case KindDirectory:
	case KindRoot:
		return failf(OpRmdir, p, ErrPermissionDenied, "cannot remove the root")
	case KindNotFound:
		return failf(OpRmdir, p, ErrNotFound, "no such directory")
	default:
		return failf(OpRmdir, p, ErrInvalidArgument, "not a directory")
	}

	dir := r.path.String()
	name := r.path.Device()

	removed, err := c.tree.RemoveDevice(name)
	if err != nil {
		ctrlLogger.Error("Failed to remove device %q from the document: %v", name, err)
		return wrap(OpRmdir, p, ErrIO, err)
	}
	if !removed {
		ctrlLogger.Warn("Device %q was missing from the document", name)
	}

	files := c.store.FilesIn(dir)
	for _, f := range files {
		if f.EntryID != "" {
			c.catalog.Remove(f.EntryID)
		}
		c.store.RemoveFile(f.Name, dir)
	}
	c.catalog.Remove(r.dir.EntryID)
	if i, ok := c.store.FindDir(dir); ok {
		c.store.RemoveDir(i)
	}

	if root, ok := c.store.Dir("/"); ok {
		touch(&root.Meta, c.now())
	}
	c.updateGauges()
	ctrlLogger.Info("Removed device %q with %d files", name, len(files))
	return nil
}

// RemoveFile removes the component file p and its document and catalog
// entries. Pseudo files go with their directory only.
func (c *Controller) RemoveFile(p string) (err error) {
	defer observe(OpUnlink, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.resolve(p)
	switch r.kind {
	case KindFile:
	case KindPseudo:
		return failf(OpUnlink, p, ErrPermissionDenied, "pseudo files are removed with their device")
	case KindNotFound:
		return failf(OpUnlink, p, ErrNotFound, "no such file")
	default:
		return failf(OpUnlink, p, ErrInvalidArgument, "is a directory")
	}

	parent := r.path.Parent()
	f := r.file

	removed, err := c.tree.RemoveChild(parent.Device(), f.Name)
	if err != nil {
		ctrlLogger.Error("Failed to remove component %q from the document: %v", f.Name, err)
		return wrap(OpUnlink, p, ErrIO, err)
	}
	if !removed {
		ctrlLogger.Warn("Component %q was missing from the document", f.Name)
	}

	c.catalog.Remove(f.EntryID)
	c.store.RemoveFile(f.Name, parent.String())
	if dir, ok := c.store.Dir(parent.String()); ok {
		touch(&dir.Meta, c.now())
	}
	c.updateGauges()
	ctrlLogger.Info("Removed component %q from %q", f.Name, parent)
	return nil
}

// Write applies buf to p and returns the number of bytes accepted.
// Actuators take buf as their new content. Sensors refuse writes. Other
// components only accept the data and info control inputs, which
// regenerate their content.
func (c *Controller) Write(p string, buf []byte, offset int64) (n int, err error) {
	defer observe(OpWrite, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.resolve(p)
	switch r.kind {
	case KindFile:
	case KindPseudo:
		return 0, failf(OpWrite, p, ErrPermissionDenied, "pseudo files are read-only")
	case KindNotFound:
		return 0, failf(OpWrite, p, ErrNotFound, "no such file")
	default:
		return 0, failf(OpWrite, p, ErrInvalidArgument, "is a directory")
	}

	f := r.file
	switch {
	case naming.IsSensor(f.Model):
		return 0, failf(OpWrite, p, ErrPermissionDenied, "sensor %q is read-only", f.Name)
	case naming.IsActuator(f.Model):
		if uint64(len(buf)) > c.maxFileSize {
			return 0, failf(OpWrite, p, ErrOutOfMemory, "%s exceeds the %s limit",
				humanize.Bytes(uint64(len(buf))), humanize.Bytes(c.maxFileSize))
		}
		f.Content = append([]byte(nil), buf...)
		f.Mode = namespace.ReadUnset
	default:
		switch string(buf) {
		case controlData:
			f.Mode = namespace.ReadData
			f.Content = randomData()
		case controlInfo:
			node, ok := c.tree.FindChild(r.path.Device(), f.Name)
			if !ok {
				return 0, failf(OpWrite, p, ErrNotFound, "component %q is not in the document", f.Name)
			}
			f.Mode = namespace.ReadInfo
			f.Content = formatInfo(node, f.EntryID)
		default:
			return 0, failf(OpWrite, p, ErrPermissionDenied, "unrecognised control input %q", buf)
		}
	}

	touch(&f.Meta, c.now())
	metrics.AddBytesWritten(len(buf))
	ctrlLogger.Debug("Wrote %d bytes to %q at offset %d (mode=%s)", len(buf), p, offset, f.Mode)
	return len(buf), nil
}

// Truncate resizes the content of p to size, zero filling any growth.
func (c *Controller) Truncate(p string, size uint64) (err error) {
	defer observe(OpTruncate, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.resolve(p)
	switch r.kind {
	case KindFile:
	case KindPseudo:
		return failf(OpTruncate, p, ErrPermissionDenied, "pseudo files are read-only")
	case KindNotFound:
		return failf(OpTruncate, p, ErrNotFound, "no such file")
	default:
		return failf(OpTruncate, p, ErrInvalidArgument, "is a directory")
	}

	if size > c.maxFileSize {
		return failf(OpTruncate, p, ErrOutOfMemory, "%s exceeds the %s limit",
			humanize.Bytes(size), humanize.Bytes(c.maxFileSize))
	}

	f := r.file
	if size <= f.Size() {
		f.Content = f.Content[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.Content)
		f.Content = grown
	}

	touch(&f.Meta, c.now())
	ctrlLogger.Debug("Truncated %q to %s", p, humanize.Bytes(size))
	return nil
}

// UpdateTimestamps sets the access and modification times of p. A zero
// time leaves that timestamp unchanged. Updating a file also touches its
// directory.
func (c *Controller) UpdateTimestamps(p string, atime, mtime time.Time) (err error) {
	defer observe(OpUtimens, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	r := c.resolve(p)
	switch r.kind {
	case KindRoot, KindDirectory:
		setTimes(&r.dir.Meta, atime, mtime, now)
	case KindFile, KindPseudo:
		setTimes(&r.file.Meta, atime, mtime, now)
		if dir, ok := c.store.Dir(r.path.Parent().String()); ok {
			dir.Meta.Mtime = now
		}
	default:
		return failf(OpUtimens, p, ErrNotFound, "no such entry")
	}

	ctrlLogger.Trace("Updated timestamps of %q", p)
	return nil
}

func touch(m *namespace.Metadata, now time.Time) {
	m.Mtime = now
	m.Ctime = now
}

func setTimes(m *namespace.Metadata, atime, mtime, now time.Time) {
	if !atime.IsZero() {
		m.Atime = atime
	}
	if !mtime.IsZero() {
		m.Mtime = mtime
	}
	m.Ctime = now
}

// catalogError maps a catalog failure after validation.
func catalogError(op, p string, err error) error {
	if errors.Is(err, catalog.ErrInvalidModel) || errors.Is(err, catalog.ErrInvalidIMEI) {
		return wrap(op, p, ErrInvalidArgument, err)
	}
	return wrap(op, p, ErrIO, err)
}

func nodeFromEntry(e catalog.Entry) *state.Node {
	typ := state.TypeFile
	if e.Type == naming.TypeFolder {
		typ = state.TypeFolder
	}
	return &state.Node{
		Name:             e.Name,
		Model:            e.Model,
		SerialNumber:     e.SerialNumber,
		RegistrationDate: e.RegisteredAt.Unix(),
		IMEI:             e.IMEI,
		SystemID:         e.SystemID,
		Type:             typ,
	}
}
