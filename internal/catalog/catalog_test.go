package catalog

import (
	"errors"
	"testing"
	"time"

	"devfs/internal/naming"
)

func TestCreateFileEntry(t *testing.T) {
	c := New()
	now := time.Unix(1700000000, 0)

	e, err := c.Create("motor", "ACTUATOR_X1", 42, now, "ignored", naming.TypeFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if e.Name != "motor" || e.Model != "ACTUATOR_X1" || e.SerialNumber != 42 {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.IMEI != "" {
		t.Errorf("File entries carry no IMEI, got %q", e.IMEI)
	}
	if !e.RegisteredAt.Equal(now) {
		t.Errorf("Expected registration %v, got %v", now, e.RegisteredAt)
	}
	if len(e.SystemID) != SystemIDLength || !naming.IsDigits(e.SystemID) {
		t.Errorf("System id should be %d digits, got %q", SystemIDLength, e.SystemID)
	}

	got, ok := c.Get(e.SystemID)
	if !ok || got != e {
		t.Error("Entry should be retrievable by system id")
	}
}

func TestCreateFolderForcesModel(t *testing.T) {
	c := New()

	e, err := c.Create("rover", "SENSOR", 1, time.Now(), "1234567", naming.TypeFolder)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e.Model != naming.FolderModel {
		t.Errorf("Folder model should be forced to %q, got %q", naming.FolderModel, e.Model)
	}
	if e.IMEI != "1234567" {
		t.Errorf("Unexpected IMEI %q", e.IMEI)
	}
}

func TestCreateRejects(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		imei    string
		typ     naming.EntryType
		wantErr error
	}{
		{name: "unknown model", model: "LASER", typ: naming.TypeFile, wantErr: ErrInvalidModel},
		{name: "lower case model", model: "sensor", typ: naming.TypeFile, wantErr: ErrInvalidModel},
		{name: "short imei", imei: "123", typ: naming.TypeFolder, wantErr: ErrInvalidIMEI},
		{name: "alpha imei", imei: "12345a7", typ: naming.TypeFolder, wantErr: ErrInvalidIMEI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			_, err := c.Create("x", tt.model, 1, time.Now(), tt.imei, tt.typ)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if len(c.Entries()) != 0 {
				t.Error("Rejected entries must not be stored")
			}
		})
	}
}

func TestEntriesAreCopies(t *testing.T) {
	c := New()
	e, err := c.Create("motor", "ACTUATOR", 1, time.Now(), "", naming.TypeFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries := c.Entries()
	entries[0].Model = "SENSOR"

	got, _ := c.Get(e.SystemID)
	if got.Model != "ACTUATOR" {
		t.Error("Mutating a returned slice must not change the catalog")
	}
}

func TestRemoveAndCount(t *testing.T) {
	c := New()
	folder, _ := c.Create("rover", "", 1, time.Now(), "1234567", naming.TypeFolder)
	file, _ := c.Create("motor", "ACTUATOR", 1, time.Now(), "", naming.TypeFile)

	if c.Count(naming.TypeFolder) != 1 || c.Count(naming.TypeFile) != 1 {
		t.Fatalf("Unexpected counts: folders=%d files=%d", c.Count(naming.TypeFolder), c.Count(naming.TypeFile))
	}

	if !c.Remove(file.SystemID) {
		t.Fatal("Remove should succeed")
	}
	if c.Remove(file.SystemID) {
		t.Error("Second remove should fail")
	}
	if _, ok := c.Get(folder.SystemID); !ok {
		t.Error("Other entries must survive")
	}
}

func TestRegister(t *testing.T) {
	c := New()
	registered := time.Unix(1700000000, 0)

	kept, err := c.Register(Entry{Name: "rover", SerialNumber: 1, RegisteredAt: registered,
		SystemID: "0123456789", IMEI: "1234567", Type: naming.TypeFolder})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if kept.SystemID != "0123456789" || kept.Model != naming.FolderModel {
		t.Errorf("Unexpected restored entry %+v", kept)
	}

	tests := []struct {
		name string
		id   string
	}{
		{name: "duplicate", id: "0123456789"},
		{name: "missing", id: ""},
		{name: "malformed", id: "12ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := c.Register(Entry{Name: "motor", Model: "ACTUATOR", SystemID: tt.id, Type: naming.TypeFile})
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			if e.SystemID == tt.id || len(e.SystemID) != SystemIDLength {
				t.Errorf("Expected a fresh system id, got %q", e.SystemID)
			}
		})
	}

	if _, err := c.Register(Entry{Name: "x", Model: "LASER", Type: naming.TypeFile}); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("Expected ErrInvalidModel, got %v", err)
	}
}

func TestUniqueSystemID(t *testing.T) {
	c := New()
	ids := []string{"0000000001", "0000000001", "0000000002"}
	c.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	first, err := c.Create("a", "SENSOR", 1, time.Now(), "", naming.TypeFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := c.Create("b", "SENSOR", 2, time.Now(), "", naming.TypeFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.SystemID == second.SystemID {
		t.Errorf("System ids must be unique, both %q", first.SystemID)
	}
}
