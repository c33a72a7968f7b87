package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestManager(t *testing.T, backups int) *Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "devfs-state-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	m, err := NewManager(filepath.Join(dir, "devices.json"), backups)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestLoadMissingAndEmpty(t *testing.T) {
	m := setupTestManager(t, DefaultBackupCount)

	doc, err := m.Load()
	if err != nil {
		t.Fatalf("Load of an empty document failed: %v", err)
	}
	if doc.Devices == nil || len(doc.Devices) != 0 {
		t.Errorf("Expected an empty device list, got %+v", doc.Devices)
	}

	if err := os.Remove(m.Path()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(); err != nil {
		t.Errorf("Load of a missing document failed: %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	m := setupTestManager(t, DefaultBackupCount)
	if err := os.WriteFile(m.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := m.Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Expected ErrCorrupt, got %v", err)
	}
	if doc == nil || len(doc.Devices) != 0 {
		t.Error("A corrupt document should read as empty")
	}
}

func TestLoadAcceptsComments(t *testing.T) {
	m := setupTestManager(t, DefaultBackupCount)
	data := `{
  // hand edited
  "devices": [
    {"Name": "rover", "Model": "TTConnectWave", "SerialNumber": 1,
     "RegistrationDate": 1700000000, "IMEI": "1234567", "Type": "Folder",},
  ],
}`
	if err := os.WriteFile(m.Path(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Devices) != 1 || doc.Devices[0].IMEI != "1234567" {
		t.Errorf("Unexpected document %+v", doc.Devices)
	}
}

func TestSaveWritesReadableJSON(t *testing.T) {
	m := setupTestManager(t, DefaultBackupCount)

	if err := m.Save(NewDocument()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"devices\": []\n}" {
		t.Errorf("Unexpected empty document %q", data)
	}
}

func TestBackupRotation(t *testing.T) {
	m := setupTestManager(t, 2)
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 5; i++ {
		doc := NewDocument()
		doc.InsertRoot(&Node{Name: fmt.Sprintf("dev%d", i), Type: TypeFolder})
		if err := m.Save(doc); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	backups, err := m.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("Expected 2 backups, got %d", len(backups))
	}

	// Newest backup holds the document before the last save
	doc, err := m.ReadBackup(backups[0])
	if err != nil {
		t.Fatalf("ReadBackup failed: %v", err)
	}
	if len(doc.Devices) != 1 || doc.Devices[0].Name != "dev3" {
		t.Errorf("Expected dev3 in newest backup, got %+v", doc.Devices)
	}
}

func TestBackupsDisabled(t *testing.T) {
	m := setupTestManager(t, 0)
	for i := 0; i < 3; i++ {
		if err := m.Save(NewDocument()); err != nil {
			t.Fatal(err)
		}
	}
	backups, err := m.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 0 {
		t.Errorf("Expected no backups, got %d", len(backups))
	}
}

func TestReset(t *testing.T) {
	m := setupTestManager(t, DefaultBackupCount)
	doc := NewDocument()
	doc.InsertRoot(&Node{Name: "rover", Type: TypeFolder})
	if err := m.Save(doc); err != nil {
		t.Fatal(err)
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	doc, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Devices) != 0 {
		t.Errorf("Expected empty document after reset, got %d devices", len(doc.Devices))
	}
}
