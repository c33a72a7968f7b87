// Package naming parses the structured leaf names used when devices and
// components are created, and derives the names shown to users.
//
// A component file is created as NAME.MODEL.SERIAL and a device directory
// as NAME.SERIAL.IMEI. Once created, both are exposed under NAME only.
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separator splits the fields of a structured name.
const Separator = "."

// FolderModel is the only model accepted for device directories.
const FolderModel = "TTConnectWave"

// Component model prefixes accepted for files.
const (
	ModelActuator    = "ACTUATOR"
	ModelSensor      = "SENSOR"
	ModelController  = "CONTROLLER"
	ModelTransceiver = "TRANSCEIVER"
)

// FileModels lists the accepted component model prefixes.
var FileModels = []string{ModelActuator, ModelSensor, ModelController, ModelTransceiver}

// ErrInvalidFormat is returned when a leaf name does not follow the grammar.
var ErrInvalidFormat = errors.New("invalid name format")

// EntryType distinguishes components from devices.
type EntryType int

const (
	TypeFile EntryType = iota
	TypeFolder
)

func (t EntryType) String() string {
	if t == TypeFolder {
		return "Folder"
	}
	return "File"
}

var (
	fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+\.[A-Za-z0-9_-]+\.[0-9]+$`)
	dirNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]+\.[0-9]+\.[0-9]+$`)
)

// FileName is a decomposed NAME.MODEL.SERIAL leaf.
type FileName struct {
	Name   string
	Model  string
	Serial int
}

// DirName is a decomposed NAME.SERIAL.IMEI leaf.
type DirName struct {
	Name   string
	Serial int
	IMEI   string
}

// DecomposeFileName splits a component leaf name into its fields.
func DecomposeFileName(raw string) (FileName, error) {
	if !fileNamePattern.MatchString(raw) {
		return FileName{}, fmt.Errorf("%w: %q, expected name.model.serial", ErrInvalidFormat, raw)
	}
	parts := strings.Split(raw, Separator)
	serial, err := strconv.Atoi(parts[2])
	if err != nil {
		return FileName{}, fmt.Errorf("%w: serial %q: %v", ErrInvalidFormat, parts[2], err)
	}
	return FileName{Name: parts[0], Model: parts[1], Serial: serial}, nil
}

// DecomposeDirName splits a device leaf name into its fields.
func DecomposeDirName(raw string) (DirName, error) {
	if !dirNamePattern.MatchString(raw) {
		return DirName{}, fmt.Errorf("%w: %q, expected name.serial.imei", ErrInvalidFormat, raw)
	}
	parts := strings.Split(raw, Separator)
	serial, err := strconv.Atoi(parts[1])
	if err != nil {
		return DirName{}, fmt.Errorf("%w: serial %q: %v", ErrInvalidFormat, parts[1], err)
	}
	return DirName{Name: parts[0], Serial: serial, IMEI: parts[2]}, nil
}

// DisplayName returns the part of raw before the first separator.
func DisplayName(raw string) string {
	if i := strings.Index(raw, Separator); i >= 0 {
		return raw[:i]
	}
	return raw
}

// IsStructured reports whether raw carries the two-separator suffix that
// must be stripped before lookup.
func IsStructured(raw string) bool {
	return strings.Count(raw, Separator) == 2
}

// IsValidModel checks model against the prefixes allowed for typ.
// Matching is a case-sensitive prefix comparison.
func IsValidModel(model string, typ EntryType) bool {
	if typ == TypeFolder {
		return strings.HasPrefix(model, FolderModel)
	}
	for _, prefix := range FileModels {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// IsActuator reports whether model belongs to the write-only class.
func IsActuator(model string) bool {
	return strings.HasPrefix(model, ModelActuator)
}

// IsSensor reports whether model belongs to the read-only class.
func IsSensor(model string) bool {
	return strings.HasPrefix(model, ModelSensor)
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
