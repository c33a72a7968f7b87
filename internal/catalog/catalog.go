// Package catalog keeps the validated device entries behind every device
// directory and component file.
package catalog

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"devfs/internal/logging"
	"devfs/internal/naming"
)

var (
	logger = logging.GetLogger().WithPrefix("catalog")

	// ErrInvalidModel indicates a model outside the accepted prefixes
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidIMEI indicates a device IMEI that is not 7 digits
	ErrInvalidIMEI = errors.New("invalid IMEI")
)

const (
	// SystemIDLength is the number of digits in a generated identifier.
	SystemIDLength = 10

	// IMEILength is the number of digits in a device IMEI.
	IMEILength = 7
)

// Entry is an immutable device record. Callers receive copies.
type Entry struct {
	Name         string
	Model        string
	SerialNumber int
	RegisteredAt time.Time
	SystemID     string
	IMEI         string
	Type         naming.EntryType
}

// Catalog is the ordered set of entries. It is not safe for concurrent
// use; the controller serialises access.
type Catalog struct {
	entries []Entry
	newID   func() (string, error)
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{newID: randomSystemID}
}

// Validate runs the checks Create performs without allocating anything.
// Folder entries are validated against the canonical folder model.
func Validate(model, imei string, typ naming.EntryType) error {
	if typ == naming.TypeFolder {
		if len(imei) != IMEILength || !naming.IsDigits(imei) {
			return fmt.Errorf("%w: %q must be %d digits", ErrInvalidIMEI, imei, IMEILength)
		}
		return nil
	}
	if !naming.IsValidModel(model, typ) {
		return fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	return nil
}

// Create validates and appends a new entry. Folder entries always carry
// naming.FolderModel whatever model the caller passes.
func (c *Catalog) Create(name, model string, serial int, registeredAt time.Time, imei string, typ naming.EntryType) (Entry, error) {
	if typ == naming.TypeFolder {
		model = naming.FolderModel
	} else {
		imei = ""
	}
	if err := Validate(model, imei, typ); err != nil {
		logger.Debug("Rejected %s entry %q: %v", typ, name, err)
		return Entry{}, err
	}

	id, err := c.uniqueID()
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		Name:         name,
		Model:        model,
		SerialNumber: serial,
		RegisteredAt: registeredAt,
		SystemID:     id,
		IMEI:         imei,
		Type:         typ,
	}
	c.entries = append(c.entries, e)
	logger.Debug("Registered %s entry %q (model=%s, serial=%d, id=%s)", typ, name, model, serial, id)
	return e, nil
}

// Register appends a previously persisted entry. Its system identifier is
// kept when it is well formed and unused; otherwise a new one is assigned.
func (c *Catalog) Register(e Entry) (Entry, error) {
	if e.Type == naming.TypeFolder {
		e.Model = naming.FolderModel
	} else {
		e.IMEI = ""
	}
	if err := Validate(e.Model, e.IMEI, e.Type); err != nil {
		return Entry{}, err
	}

	_, taken := c.Get(e.SystemID)
	if taken || len(e.SystemID) != SystemIDLength || !naming.IsDigits(e.SystemID) {
		id, err := c.uniqueID()
		if err != nil {
			return Entry{}, err
		}
		logger.Debug("Assigned system id %s to restored entry %q", id, e.Name)
		e.SystemID = id
	}

	c.entries = append(c.entries, e)
	return e, nil
}

func (c *Catalog) uniqueID() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id, err := c.newID()
		if err != nil {
			return "", fmt.Errorf("failed to generate system id: %w", err)
		}
		if _, taken := c.Get(id); !taken {
			return id, nil
		}
	}
	return "", errors.New("failed to generate a unique system id")
}

// Get returns the entry with the given system identifier.
func (c *Catalog) Get(systemID string) (Entry, bool) {
	for _, e := range c.entries {
		if e.SystemID == systemID {
			return e, true
		}
	}
	return Entry{}, false
}

// Remove drops the entry with the given system identifier from the list.
func (c *Catalog) Remove(systemID string) bool {
	for i, e := range c.entries {
		if e.SystemID == systemID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			logger.Debug("Removed entry %q (id=%s)", e.Name, systemID)
			return true
		}
	}
	return false
}

// Entries returns a copy of all entries in creation order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Count returns the number of entries of the given type.
func (c *Catalog) Count(typ naming.EntryType) int {
	n := 0
	for _, e := range c.entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func randomSystemID() (string, error) {
	digits := make([]byte, SystemIDLength)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
