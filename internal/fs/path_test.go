package fs

import (
	"testing"
)

func TestVirtualPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		display  string
		device   string
		depth    int
	}{
		{
			name:     "root",
			input:    "/",
			expected: "/",
			display:  "/",
			depth:    0,
		},
		{
			name:     "relative path gets rooted",
			input:    "rover",
			expected: "/rover",
			display:  "/rover",
			device:   "rover",
			depth:    1,
		},
		{
			name:     "structured directory leaf",
			input:    "/rover.1.1234567",
			expected: "/rover.1.1234567",
			display:  "/rover",
			device:   "rover.1.1234567",
			depth:    1,
		},
		{
			name:     "structured file leaf",
			input:    "/rover/motor.ACTUATOR.1",
			expected: "/rover/motor.ACTUATOR.1",
			display:  "/rover/motor",
			device:   "rover",
			depth:    2,
		},
		{
			name:     "single separator is kept",
			input:    "/rover/notes.txt",
			expected: "/rover/notes.txt",
			display:  "/rover/notes.txt",
			device:   "rover",
			depth:    2,
		},
		{
			name:     "double slashes and dots get cleaned",
			input:    "//rover/./GYRO/",
			expected: "/rover/GYRO",
			display:  "/rover/GYRO",
			device:   "rover",
			depth:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp := NewVirtualPath(tt.input)
			if vp.String() != tt.expected {
				t.Errorf("Expected path %q, got %q", tt.expected, vp.String())
			}
			if got := vp.Display().String(); got != tt.display {
				t.Errorf("Expected display path %q, got %q", tt.display, got)
			}
			if got := vp.Device(); got != tt.device {
				t.Errorf("Expected device %q, got %q", tt.device, got)
			}
			if got := vp.Depth(); got != tt.depth {
				t.Errorf("Expected depth %d, got %d", tt.depth, got)
			}
		})
	}
}

func TestVirtualPathNavigation(t *testing.T) {
	vp := NewVirtualPath("/rover/motor")
	if vp.Parent().String() != "/rover" {
		t.Errorf("Expected parent /rover, got %q", vp.Parent().String())
	}
	if vp.Base() != "motor" {
		t.Errorf("Expected base motor, got %q", vp.Base())
	}
	if vp.IsRoot() || !vp.Parent().Parent().IsRoot() {
		t.Error("Root detection failed")
	}
	if got := NewVirtualPath("/").Join("rover").String(); got != "/rover" {
		t.Errorf("Expected /rover, got %q", got)
	}
}
