// Package fs provides the device filesystem.
package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"devfs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrInvalidArgument indicates a malformed leaf name or model token
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists indicates a duplicate device, component or pseudo file
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound indicates a missing path, parent or document entry
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates an operation the model class or the
	// tree layout forbids
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOutOfMemory indicates content growth beyond the configured limit
	ErrOutOfMemory = errors.New("out of memory")

	// ErrIO indicates the device document could not be rewritten
	ErrIO = errors.New("input/output error")
)

// Error wraps filesystem errors with the operation and affected path.
type Error struct {
	Op   string // Operation that failed (e.g., "create", "write")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFSError creates a new Error with the given operation, path, and
// underlying error.
func NewFSError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Trace("Created new FSError: %v", fsErr)
	return fsErr
}

// failf builds an Error of the given kind with a formatted detail.
func failf(op, path string, kind error, format string, args ...interface{}) *Error {
	return NewFSError(op, path, fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)))
}

// wrap builds an Error of the given kind around a lower level cause.
func wrap(op, path string, kind, cause error) *Error {
	return NewFSError(op, path, fmt.Errorf("%w: %w", kind, cause))
}

// ToFuseError converts an error to the errno FUSE expects.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var fsErr *Error
	if errors.As(err, &fsErr) {
		errLogger.Trace("Converting FSError to FUSE error: %v", fsErr)

		switch {
		case errors.Is(fsErr.Err, ErrNotFound):
			return syscall.ENOENT
		case errors.Is(fsErr.Err, ErrInvalidArgument):
			return syscall.EINVAL
		case errors.Is(fsErr.Err, ErrAlreadyExists):
			return syscall.EEXIST
		case errors.Is(fsErr.Err, ErrPermissionDenied):
			return syscall.EPERM
		case errors.Is(fsErr.Err, ErrOutOfMemory):
			return syscall.ENOMEM
		case errors.Is(fsErr.Err, ErrIO):
			return syscall.EIO
		default:
			errLogger.Debug("Unknown FSError type, returning EIO: %v", fsErr)
			return syscall.EIO
		}
	}

	// For non-FSErrors, convert common error types
	errLogger.Trace("Converting standard error to FUSE error: %v", err)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}

// Operation names for consistent logging, metrics and error reporting
const (
	OpGetattr  = "getattr"  // Getting attributes
	OpReadDir  = "readdir"  // Listing a directory
	OpOpen     = "open"     // Opening a file
	OpCreate   = "create"   // Creating a component or pseudo file
	OpMkdir    = "mkdir"    // Creating a device directory
	OpUnlink   = "unlink"   // Removing a component file
	OpRmdir    = "rmdir"    // Removing a device directory
	OpRead     = "read"     // Reading file content
	OpWrite    = "write"    // Writing file content
	OpTruncate = "truncate" // Resizing file content
	OpUtimens  = "utimens"  // Updating timestamps
	OpRestore  = "restore"  // Rebuilding state from the document
)
