// Package namespace holds the in-memory directory and file records that
// back the mounted tree.
package namespace

import (
	"os"
	"path"
	"time"
)

// ReadMode selects what a generic component file emulates.
type ReadMode int

const (
	ReadUnset ReadMode = iota
	ReadData
	ReadInfo
)

func (m ReadMode) String() string {
	switch m {
	case ReadData:
		return "data"
	case ReadInfo:
		return "info"
	default:
		return "unset"
	}
}

// Metadata is the POSIX-like attribute set stored for every record.
type Metadata struct {
	Mode  os.FileMode
	Uid   uint32
	Gid   uint32
	Nlink uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// DirRecord is a device directory, always stored under its display path.
type DirRecord struct {
	Path    string
	EntryID string // catalog system identifier, empty for the root
	Meta    Metadata
}

// FileRecord is a component or pseudo file.
type FileRecord struct {
	Name      string // display name
	Directory string // display path of the owning directory
	RealName  string // leaf supplied at creation, suffix included
	Model     string
	EntryID   string // catalog system identifier, empty for pseudo files
	Pseudo    bool
	Meta      Metadata
	Content   []byte
	Mode      ReadMode
}

// Size is the current content length.
func (f *FileRecord) Size() uint64 {
	return uint64(len(f.Content))
}

// Store owns the directory and file collections. It is not safe for
// concurrent use; the controller serialises access.
type Store struct {
	dirs  []*DirRecord
	files []*FileRecord
	uid   uint32
	gid   uint32
	now   func() time.Time
}

// NewStore creates a store whose records are owned by uid/gid. The root
// directory is always present.
func NewStore(uid, gid uint32) *Store {
	s := &Store{
		dirs:  make([]*DirRecord, 0, 10),
		files: make([]*FileRecord, 0, 10),
		uid:   uid,
		gid:   gid,
		now:   time.Now,
	}
	s.AddDir("/")
	s.dirs[0].Meta.Mode = os.ModeDir | 0775
	return s
}

func (s *Store) metadata(mode os.FileMode, nlink uint32) Metadata {
	now := s.now()
	return Metadata{
		Mode:  mode,
		Uid:   s.uid,
		Gid:   s.gid,
		Nlink: nlink,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// AddDir records a directory. Adding an existing path is a no-op that
// returns the existing record.
func (s *Store) AddDir(p string) *DirRecord {
	if i, ok := s.FindDir(p); ok {
		return s.dirs[i]
	}
	d := &DirRecord{
		Path: p,
		Meta: s.metadata(os.ModeDir|0755, 2),
	}
	s.dirs = append(s.dirs, d)
	return d
}

// FindDir returns the index of the directory at p.
func (s *Store) FindDir(p string) (int, bool) {
	for i, d := range s.dirs {
		if d.Path == p {
			return i, true
		}
	}
	return -1, false
}

// Dir returns the directory record at p.
func (s *Store) Dir(p string) (*DirRecord, bool) {
	i, ok := s.FindDir(p)
	if !ok {
		return nil, false
	}
	return s.dirs[i], true
}

// RemoveDir deletes the directory at index, preserving the order of the
// remaining records. Out of range indexes are ignored.
func (s *Store) RemoveDir(index int) {
	if index < 0 || index >= len(s.dirs) {
		return
	}
	copy(s.dirs[index:], s.dirs[index+1:])
	s.dirs[len(s.dirs)-1] = nil
	s.dirs = s.dirs[:len(s.dirs)-1]
}

// ChildDirs returns the directories whose parent is p, in creation order.
func (s *Store) ChildDirs(p string) []*DirRecord {
	var out []*DirRecord
	for _, d := range s.dirs {
		if d.Path != "/" && path.Dir(d.Path) == p {
			out = append(out, d)
		}
	}
	return out
}

// Dirs returns every directory record including the root.
func (s *Store) Dirs() []*DirRecord {
	return append([]*DirRecord(nil), s.dirs...)
}

// AddFile appends a file record. Callers check for duplicates first.
func (s *Store) AddFile(name, dir string) *FileRecord {
	f := &FileRecord{
		Name:      name,
		Directory: dir,
		RealName:  name,
		Meta:      s.metadata(0644, 1),
	}
	s.files = append(s.files, f)
	return f
}

// FindFile returns the record with the exact name and directory.
func (s *Store) FindFile(name, dir string) (*FileRecord, bool) {
	for _, f := range s.files {
		if f.Name == name && f.Directory == dir {
			return f, true
		}
	}
	return nil, false
}

// RemoveFile deletes the record with the exact name and directory.
func (s *Store) RemoveFile(name, dir string) bool {
	for i, f := range s.files {
		if f.Name == name && f.Directory == dir {
			copy(s.files[i:], s.files[i+1:])
			s.files[len(s.files)-1] = nil
			s.files = s.files[:len(s.files)-1]
			return true
		}
	}
	return false
}

// FilesIn returns the files whose directory is dir, in creation order.
func (s *Store) FilesIn(dir string) []*FileRecord {
	var out []*FileRecord
	for _, f := range s.files {
		if f.Directory == dir {
			out = append(out, f)
		}
	}
	return out
}

// DirectorySize sums the content size of the files directly in dir.
func (s *Store) DirectorySize(dir string) uint64 {
	var total uint64
	for _, f := range s.files {
		if f.Directory == dir {
			total += f.Size()
		}
	}
	return total
}

// Counts reports the number of directories (root excluded) and files.
func (s *Store) Counts() (dirs, files int) {
	return len(s.dirs) - 1, len(s.files)
}
