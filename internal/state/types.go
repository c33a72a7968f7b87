// Package state provides the persisted device tree mirrored by the
// virtual filesystem.
package state

// NodeType tags a device tree node.
type NodeType string

const (
	TypeFolder NodeType = "Folder"
	TypeFile   NodeType = "File"
)

// Node is one device (Folder) or component (File). Only folders carry
// children; insertion order is creation order.
type Node struct {
	Name             string   `json:"Name"`
	Model            string   `json:"Model"`
	SerialNumber     int      `json:"SerialNumber"`
	RegistrationDate int64    `json:"RegistrationDate"`
	IMEI             string   `json:"IMEI"`
	SystemID         string   `json:"SystemID,omitempty"`
	Type             NodeType `json:"Type"`
	Children         []*Node  `json:"Children,omitempty"`
}

// IsFolder reports whether n may hold children.
func (n *Node) IsFolder() bool {
	return n.Type == TypeFolder
}

// Document is the whole persisted tree.
type Document struct {
	// Top level devices, always folders
	Devices []*Node `json:"devices"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Devices: []*Node{}}
}

// Visitor is called for every node in depth-first pre-order. parent is
// nil for top level nodes. Returning false stops the walk.
type Visitor func(n, parent *Node) bool

// Walk visits every node depth-first in array order.
func (d *Document) Walk(fn Visitor) {
	for _, n := range d.Devices {
		if !walk(n, nil, fn) {
			return
		}
	}
}

func walk(n, parent *Node, fn Visitor) bool {
	if !fn(n, parent) {
		return false
	}
	if !n.IsFolder() {
		return true
	}
	for _, child := range n.Children {
		if !walk(child, n, fn) {
			return false
		}
	}
	return true
}

// InsertRoot appends a top level node.
func (d *Document) InsertRoot(n *Node) {
	d.Devices = append(d.Devices, n)
}

// InsertChild appends n to the children of the first folder named
// parent. It reports false and leaves the document unchanged when no
// such folder exists.
func (d *Document) InsertChild(parent string, n *Node) bool {
	var target *Node
	d.Walk(func(node, _ *Node) bool {
		if node.Name == parent && node.IsFolder() {
			target = node
			return false
		}
		return true
	})
	if target == nil {
		return false
	}
	target.Children = append(target.Children, n)
	return true
}

// FindByName returns the first node named name in depth-first order.
func (d *Document) FindByName(name string) *Node {
	var found *Node
	d.Walk(func(node, _ *Node) bool {
		if node.Name == name {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindDevice returns the top level node named name.
func (d *Document) FindDevice(name string) *Node {
	for _, n := range d.Devices {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FindChild returns the direct child name of the top level device parent.
func (d *Document) FindChild(parent, name string) *Node {
	device := d.FindDevice(parent)
	if device == nil {
		return nil
	}
	for _, child := range device.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// RemoveByName deletes one node named name together with its subtree.
// Direct children of folders are searched first; otherwise the first
// match of a full depth-first search is removed, top level included.
func (d *Document) RemoveByName(name string) bool {
	removed := false
	d.Walk(func(node, _ *Node) bool {
		if !node.IsFolder() {
			return true
		}
		if i := indexOf(node.Children, name); i >= 0 {
			node.Children = removeAt(node.Children, i)
			removed = true
			return false
		}
		return true
	})
	if removed {
		return true
	}

	if i := indexOf(d.Devices, name); i >= 0 {
		d.Devices = removeAt(d.Devices, i)
		return true
	}
	return false
}

// RemoveDevice deletes the top level device named name with all of its
// components.
func (d *Document) RemoveDevice(name string) bool {
	i := indexOf(d.Devices, name)
	if i < 0 {
		return false
	}
	d.Devices = removeAt(d.Devices, i)
	return true
}

// RemoveChild deletes the direct child name of the top level device
// parent.
func (d *Document) RemoveChild(parent, name string) bool {
	device := d.FindDevice(parent)
	if device == nil {
		return false
	}
	i := indexOf(device.Children, name)
	if i < 0 {
		return false
	}
	device.Children = removeAt(device.Children, i)
	return true
}

func indexOf(nodes []*Node, name string) int {
	for i, n := range nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

func removeAt(nodes []*Node, i int) []*Node {
	copy(nodes[i:], nodes[i+1:])
	nodes[len(nodes)-1] = nil
	return nodes[:len(nodes)-1]
}
