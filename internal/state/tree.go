package state

import (
	"errors"
)

// DeviceTree is the persisted device hierarchy. Every call reads the
// document fresh and every mutation rewrites it, so the file on disk is
// always the source of truth.
type DeviceTree struct {
	manager *Manager
}

// NewDeviceTree creates a tree backed by m.
func NewDeviceTree(m *Manager) *DeviceTree {
	return &DeviceTree{manager: m}
}

// Manager returns the underlying document manager.
func (t *DeviceTree) Manager() *Manager {
	return t.manager
}

// Snapshot returns the current document. A corrupt document reads as
// empty.
func (t *DeviceTree) Snapshot() *Document {
	doc, err := t.manager.Load()
	if err != nil {
		logger.Warn("Reading device document: %v", err)
	}
	return doc
}

// update loads the document, applies fn and saves when fn reports a
// change. A corrupt document is replaced; its content survives in the
// rolling backups.
func (t *DeviceTree) update(fn func(*Document) bool) (bool, error) {
	t.manager.mu.Lock()
	defer t.manager.mu.Unlock()

	doc, err := t.manager.load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return false, err
		}
		logger.Warn("Replacing unreadable device document: %v", err)
	}

	if !fn(doc) {
		return false, nil
	}

	if _, err := t.manager.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

// InsertRoot appends a top level device.
func (t *DeviceTree) InsertRoot(n *Node) error {
	_, err := t.update(func(d *Document) bool {
		d.InsertRoot(n)
		return true
	})
	return err
}

// InsertChild appends n under the first folder named parent. It reports
// false without writing when no such folder exists.
func (t *DeviceTree) InsertChild(parent string, n *Node) (bool, error) {
	return t.update(func(d *Document) bool {
		return d.InsertChild(parent, n)
	})
}

// RemoveByName deletes the node named name with its subtree.
func (t *DeviceTree) RemoveByName(name string) (bool, error) {
	return t.update(func(d *Document) bool {
		return d.RemoveByName(name)
	})
}

// RemoveDevice deletes the top level device name and its components.
func (t *DeviceTree) RemoveDevice(name string) (bool, error) {
	return t.update(func(d *Document) bool {
		return d.RemoveDevice(name)
	})
}

// RemoveChild deletes the component name of device parent.
func (t *DeviceTree) RemoveChild(parent, name string) (bool, error) {
	return t.update(func(d *Document) bool {
		return d.RemoveChild(parent, name)
	})
}

// FindByName returns a copy of the first node named name.
func (t *DeviceTree) FindByName(name string) (Node, bool) {
	n := t.Snapshot().FindByName(name)
	if n == nil {
		return Node{}, false
	}
	return *n, true
}

// FindChild returns a copy of the component name of device parent.
func (t *DeviceTree) FindChild(parent, name string) (Node, bool) {
	n := t.Snapshot().FindChild(parent, name)
	if n == nil {
		return Node{}, false
	}
	return *n, true
}

// FindIMEI returns the IMEI of the top level device named device.
func (t *DeviceTree) FindIMEI(device string) (string, bool) {
	n := t.Snapshot().FindDevice(device)
	if n == nil {
		return "", false
	}
	return n.IMEI, true
}
