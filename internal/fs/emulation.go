package fs

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"devfs/internal/naming"
	"devfs/internal/state"
)

// Pseudo files present in every device directory
const (
	PseudoGyro = "GYRO"
	PseudoGPS  = "GPS"
	PseudoIMEI = "IMEI"
)

// PseudoNames lists the pseudo files in creation order.
var PseudoNames = []string{PseudoGyro, PseudoGPS, PseudoIMEI}

// Control inputs accepted by generic component files
const (
	controlData = "data\n"
	controlInfo = "info\n"
)

const (
	dataCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789,.+-/*?!@#$%^|&"
	dataLength  = 8
)

// Modes
const (
	rootMode     = os.ModeDir | 0775
	pseudoMode   = os.FileMode(0444)
	actuatorMode = os.FileMode(0222)
	sensorMode   = os.FileMode(0444)
	fileMode     = os.FileMode(0644)
)

// IsPseudoName reports whether name is one of the reserved pseudo files.
func IsPseudoName(name string) bool {
	for _, p := range PseudoNames {
		if name == p {
			return true
		}
	}
	return false
}

// modeForModel maps a component model to its permission bits.
func modeForModel(model string) os.FileMode {
	switch {
	case naming.IsActuator(model):
		return actuatorMode
	case naming.IsSensor(model):
		return sensorMode
	default:
		return fileMode
	}
}

// telemetry renders a reading of n random decimal digits.
func telemetry(n int) []byte {
	digits := make([]string, n)
	for i := range digits {
		digits[i] = fmt.Sprintf("%d", rand.Intn(10))
	}
	return []byte(strings.Join(digits, " ") + "\n")
}

// randomData renders the payload produced by the data control input.
func randomData() []byte {
	buf := make([]byte, dataLength, dataLength+1)
	for i := range buf {
		buf[i] = dataCharset[rand.Intn(len(dataCharset))]
	}
	return append(buf, '\n')
}

// formatInfo renders the payload produced by the info control input.
func formatInfo(n state.Node, systemID string) []byte {
	if systemID == "" {
		systemID = n.SystemID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", n.Name)
	fmt.Fprintf(&b, "Model: %s\n", n.Model)
	fmt.Fprintf(&b, "SerialNumber: %d\n", n.SerialNumber)
	fmt.Fprintf(&b, "RegistrationDate: %d\n", n.RegistrationDate)
	fmt.Fprintf(&b, "SystemID: %s\n", systemID)
	return []byte(b.String())
}

// window returns the part of content a read at offset for size bytes
// covers.
func window(content []byte, size int, offset int64) []byte {
	if offset < 0 || offset >= int64(len(content)) || size <= 0 {
		return []byte{}
	}
	end := offset + int64(size)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	out := make([]byte, end-offset)
	copy(out, content[offset:end])
	return out
}
