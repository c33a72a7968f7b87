package fs

import (
	"os"
	"sync"
	"time"

	"devfs/internal/catalog"
	"devfs/internal/logging"
	"devfs/internal/metrics"
	"devfs/internal/namespace"
	"devfs/internal/naming"
	"devfs/internal/state"
)

var (
	ctrlLogger = logging.GetLogger().WithPrefix("controller")
)

// defaultMaxFileSize bounds content growth when no limit is configured.
const defaultMaxFileSize = 16 << 20

// Kind classifies a path on every call.
type Kind int

const (
	KindNotFound Kind = iota
	KindRoot
	KindPseudo
	KindDirectory
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindPseudo:
		return "pseudo"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "not-found"
	}
}

// Attr is the attribute set reported for a path.
type Attr struct {
	Path  string // display path
	Kind  Kind
	Mode  os.FileMode
	Size  uint64
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// DirEntry is one listing entry.
type DirEntry struct {
	Name string
	Dir  bool
}

// Options configures a Controller.
type Options struct {
	UID         uint32
	GID         uint32
	MaxFileSize uint64 // content limit in bytes, 0 selects the default
}

// Controller backs every filesystem operation. It owns the namespace and
// the catalog and keeps both consistent with the persisted device tree.
// One lock guards all three.
type Controller struct {
	store       *namespace.Store
	catalog     *catalog.Catalog
	tree        *state.DeviceTree
	maxFileSize uint64
	now         func() time.Time
	mu          sync.RWMutex
}

// NewController creates a controller with an empty namespace.
func NewController(tree *state.DeviceTree, opts Options) *Controller {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	ctrlLogger.Debug("Creating controller (uid=%d, gid=%d, max file size=%d)",
		opts.UID, opts.GID, opts.MaxFileSize)

	return &Controller{
		store:       namespace.NewStore(opts.UID, opts.GID),
		catalog:     catalog.New(),
		tree:        tree,
		maxFileSize: opts.MaxFileSize,
		now:         time.Now,
	}
}

// resolution is the outcome of classifying a path.
type resolution struct {
	kind Kind
	path *VirtualPath // display path
	dir  *namespace.DirRecord
	file *namespace.FileRecord
}

// resolve classifies p. A structured leaf is reduced to its display name
// before lookup. Pseudo files only resolve where a record exists.
func (c *Controller) resolve(p string) resolution {
	vp := NewVirtualPath(p)
	if vp.IsRoot() {
		root, _ := c.store.Dir("/")
		return resolution{kind: KindRoot, path: vp, dir: root}
	}

	display := vp.Display()
	if d, ok := c.store.Dir(display.String()); ok {
		return resolution{kind: KindDirectory, path: display, dir: d}
	}

	if f, ok := c.store.FindFile(display.Base(), display.Parent().String()); ok {
		kind := KindFile
		if f.Pseudo {
			kind = KindPseudo
		}
		return resolution{kind: kind, path: display, file: f}
	}

	return resolution{kind: KindNotFound, path: display}
}

// observe records the metrics of one operation.
func observe(op string, start time.Time, err *error) {
	metrics.RecordOperation(op, start, *err)
}

func attrFromMeta(m namespace.Metadata) Attr {
	return Attr{
		Mode:  m.Mode,
		Nlink: m.Nlink,
		Uid:   m.Uid,
		Gid:   m.Gid,
		Atime: m.Atime,
		Mtime: m.Mtime,
		Ctime: m.Ctime,
	}
}

// GetAttributes reports the attributes of p.
func (c *Controller) GetAttributes(p string) (attr Attr, err error) {
	defer observe(OpGetattr, time.Now(), &err)
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := c.resolve(p)
	switch r.kind {
	case KindRoot:
		attr = attrFromMeta(r.dir.Meta)
		attr.Mode = rootMode
		attr.Size = c.store.DirectorySize("/")
		attr.Nlink = 2 + safeIntToUint32(len(c.store.ChildDirs("/")))
	case KindDirectory:
		attr = attrFromMeta(r.dir.Meta)
		attr.Size = c.store.DirectorySize(r.path.String())
	case KindPseudo:
		attr = attrFromMeta(r.file.Meta)
		attr.Mode = pseudoMode
	case KindFile:
		attr = attrFromMeta(r.file.Meta)
		attr.Mode = modeForModel(r.file.Model)
		attr.Size = r.file.Size()
	default:
		return Attr{}, failf(OpGetattr, p, ErrNotFound, "no such entry")
	}

	attr.Path = r.path.String()
	attr.Kind = r.kind
	ctrlLogger.Trace("Attributes for %q: kind=%s mode=%v size=%d", p, r.kind, attr.Mode, attr.Size)
	return attr, nil
}

// List returns the entries of the directory p.
func (c *Controller) List(p string) (entries []DirEntry, err error) {
	defer observe(OpReadDir, time.Now(), &err)
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := c.resolve(p)
	switch r.kind {
	case KindRoot, KindDirectory:
	case KindNotFound:
		return nil, failf(OpReadDir, p, ErrNotFound, "no such directory")
	default:
		return nil, failf(OpReadDir, p, ErrInvalidArgument, "not a directory")
	}

	dir := r.path.String()
	entries = []DirEntry{{Name: ".", Dir: true}, {Name: "..", Dir: true}}

	if r.kind != KindRoot {
		for _, name := range PseudoNames {
			if f, ok := c.store.FindFile(name, dir); ok && f.Pseudo {
				entries = append(entries, DirEntry{Name: name})
			}
		}
	}
	for _, d := range c.store.ChildDirs(dir) {
		entries = append(entries, DirEntry{Name: NewVirtualPath(d.Path).Base(), Dir: true})
	}
	for _, f := range c.store.FilesIn(dir) {
		if f.Pseudo {
			continue
		}
		entries = append(entries, DirEntry{Name: f.Name})
	}

	ctrlLogger.Debug("Directory %q contains %d entries", dir, len(entries))
	return entries, nil
}

// Open checks that p exists.
func (c *Controller) Open(p string) (err error) {
	defer observe(OpOpen, time.Now(), &err)
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r := c.resolve(p); r.kind == KindNotFound {
		return failf(OpOpen, p, ErrNotFound, "no such entry")
	}
	return nil
}

// Read returns up to size bytes of p starting at offset. Pseudo files
// generate a fresh reading on every call.
func (c *Controller) Read(p string, size int, offset int64) (data []byte, err error) {
	defer observe(OpRead, time.Now(), &err)
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := c.resolve(p)
	switch r.kind {
	case KindPseudo:
		content, perr := c.pseudoContent(r)
		if perr != nil {
			return nil, perr
		}
		data = window(content, size, offset)
	case KindFile:
		if naming.IsActuator(r.file.Model) {
			return nil, failf(OpRead, p, ErrPermissionDenied, "actuator %q is write-only", r.file.Name)
		}
		data = window(r.file.Content, size, offset)
	case KindRoot, KindDirectory:
		return nil, failf(OpRead, p, ErrInvalidArgument, "is a directory")
	default:
		return nil, failf(OpRead, p, ErrNotFound, "no such file")
	}

	metrics.AddBytesRead(len(data))
	ctrlLogger.Trace("Read %d bytes from %q at offset %d", len(data), p, offset)
	return data, nil
}

func (c *Controller) pseudoContent(r resolution) ([]byte, error) {
	switch r.file.Name {
	case PseudoGyro:
		return telemetry(3), nil
	case PseudoGPS:
		return telemetry(2), nil
	default:
		device := r.path.Device()
		imei, ok := c.tree.FindIMEI(device)
		if !ok {
			return nil, failf(OpRead, r.path.String(), ErrNotFound, "no IMEI recorded for %q", device)
		}
		return []byte(imei + "\n"), nil
	}
}

func (c *Controller) updateGauges() {
	metrics.SetCatalogEntries("folder", c.catalog.Count(naming.TypeFolder))
	metrics.SetCatalogEntries("file", c.catalog.Count(naming.TypeFile))
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
