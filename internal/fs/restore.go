package fs

import (
	"errors"
	"fmt"
	"time"

	"devfs/internal/catalog"
	"devfs/internal/naming"
	"devfs/internal/state"
)

// Restore rebuilds the namespace and the catalog from the persisted
// document. Component contents start empty. Nodes that no longer satisfy
// the naming and model rules are skipped with a warning.
func (c *Controller) Restore() (err error) {
	defer observe(OpRestore, time.Now(), &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.tree.Manager().Load()
	if err != nil {
		if !errors.Is(err, state.ErrCorrupt) {
			return wrap(OpRestore, "", ErrIO, err)
		}
		ctrlLogger.Warn("Starting with an empty tree: %v", err)
	}

	// kept mirrors what the namespace holds, so skipped nodes cannot
	// shadow devices created later under the same name.
	kept := state.NewDocument()
	changed := false
	devices, components := 0, 0
	for _, dev := range doc.Devices {
		if !dev.IsFolder() {
			ctrlLogger.Warn("Skipping top level component %q", dev.Name)
			changed = true
			continue
		}
		dir, id, ok := c.restoreDevice(dev)
		if !ok {
			changed = true
			continue
		}
		devices++

		node := *dev
		node.Model = naming.FolderModel
		node.SystemID = id
		node.Children = nil
		for _, child := range dev.Children {
			childID, ok := c.restoreComponent(dir, child)
			if !ok {
				changed = true
				continue
			}
			components++
			restored := *child
			restored.SystemID = childID
			node.Children = append(node.Children, &restored)
		}
		changed = changed || id != dev.SystemID || dev.Model != node.Model ||
			len(node.Children) != len(dev.Children)
		kept.InsertRoot(&node)
	}

	if changed {
		if err := c.tree.Manager().Save(kept); err != nil {
			return wrap(OpRestore, "", ErrIO, err)
		}
		ctrlLogger.Info("Rewrote device document without unrestorable nodes")
	}

	c.updateGauges()
	ctrlLogger.Info("Restored %d devices and %d components from %s",
		devices, components, c.tree.Manager().Path())
	return nil
}

// restoreDevice returns the directory and system id of dev, or false when
// dev is skipped.
func (c *Controller) restoreDevice(dev *state.Node) (*VirtualPath, string, bool) {
	realName := fmt.Sprintf("%s.%d.%s", dev.Name, dev.SerialNumber, dev.IMEI)
	dn, err := naming.DecomposeDirName(realName)
	if err != nil {
		ctrlLogger.Warn("Skipping device %q: %v", dev.Name, err)
		return nil, "", false
	}

	dir := NewVirtualPath(dn.Name)
	if _, exists := c.store.Dir(dir.String()); exists {
		ctrlLogger.Warn("Skipping duplicate device %q", dev.Name)
		return nil, "", false
	}

	entry, err := c.catalog.Register(catalog.Entry{
		Name:         dn.Name,
		Model:        dev.Model,
		SerialNumber: dn.Serial,
		RegisteredAt: time.Unix(dev.RegistrationDate, 0),
		SystemID:     dev.SystemID,
		IMEI:         dn.IMEI,
		Type:         naming.TypeFolder,
	})
	if err != nil {
		ctrlLogger.Warn("Skipping device %q: %v", dev.Name, err)
		return nil, "", false
	}

	rec := c.store.AddDir(dir.String())
	rec.EntryID = entry.SystemID
	for _, name := range PseudoNames {
		if err := c.createPseudo(OpRestore, dir, name); err != nil {
			ctrlLogger.Warn("Pseudo file setup for %q: %v", dir, err)
		}
	}
	ctrlLogger.Debug("Restored device %q (id=%s)", dn.Name, entry.SystemID)
	return dir, entry.SystemID, true
}

func (c *Controller) restoreComponent(dir *VirtualPath, n *state.Node) (string, bool) {
	if n.IsFolder() {
		ctrlLogger.Warn("Skipping nested device %q in %q", n.Name, dir)
		return "", false
	}

	realName := fmt.Sprintf("%s.%s.%d", n.Name, n.Model, n.SerialNumber)
	fn, err := naming.DecomposeFileName(realName)
	if err != nil {
		ctrlLogger.Warn("Skipping component %q in %q: %v", n.Name, dir, err)
		return "", false
	}
	if _, exists := c.store.FindFile(fn.Name, dir.String()); exists {
		ctrlLogger.Warn("Skipping duplicate component %q in %q", n.Name, dir)
		return "", false
	}

	entry, err := c.catalog.Register(catalog.Entry{
		Name:         fn.Name,
		Model:        fn.Model,
		SerialNumber: fn.Serial,
		RegisteredAt: time.Unix(n.RegistrationDate, 0),
		SystemID:     n.SystemID,
		Type:         naming.TypeFile,
	})
	if err != nil {
		ctrlLogger.Warn("Skipping component %q in %q: %v", n.Name, dir, err)
		return "", false
	}

	rec := c.store.AddFile(fn.Name, dir.String())
	rec.RealName = realName
	rec.Model = entry.Model
	rec.EntryID = entry.SystemID
	rec.Meta.Mode = modeForModel(entry.Model)
	return entry.SystemID, true
}
