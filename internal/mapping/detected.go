package mapping

import "sync"

// DefaultDetectedLimit is how many unmapped items are remembered.
const DefaultDetectedLimit = 10

// DetectedKind tells what kind of unmapped item was seen.
type DetectedKind string

// Detected kinds.
const (
	DetectedCommand  DetectedKind = "command"
	DetectedResource DetectedKind = "resource"
)

// DetectedItem is something the bridge saw but could not map: a command
// name the controller sent, or a resource id the event stream reported.
type DetectedItem struct {
	Type DetectedKind `json:"type"`
	Name string       `json:"name"`
	ID   string       `json:"id"`
}

// Detected is a small FIFO of unmapped items for setup tooling.
//
// Thread Safety: All methods are safe for concurrent use.
type Detected struct {
	mu    sync.Mutex
	items []DetectedItem
	limit int
}

// NewDetected creates a list holding at most limit items.
func NewDetected(limit int) *Detected {
	if limit <= 0 {
		limit = DefaultDetectedLimit
	}
	return &Detected{limit: limit}
}

// RecordCommand remembers an unknown command name.
func (d *Detected) RecordCommand(name string) {
	d.add(DetectedItem{Type: DetectedCommand, Name: name, ID: "cmd_" + name})
}

// RecordResource remembers an unmatched resource id.
func (d *Detected) RecordResource(id string, rtype string) {
	d.add(DetectedItem{Type: DetectedResource, Name: rtype, ID: id})
}

func (d *Detected) add(item DetectedItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.items {
		if existing.ID == item.ID {
			return
		}
	}
	d.items = append(d.items, item)
	if len(d.items) > d.limit {
		d.items = d.items[len(d.items)-d.limit:]
	}
}

// List returns the items newest first.
func (d *Detected) List() []DetectedItem {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DetectedItem, len(d.items))
	for i, item := range d.items {
		out[len(d.items)-1-i] = item
	}
	return out
}

// Prune drops items the table now covers: commands whose name is mapped,
// and resources that are mapped directly or share a device with a mapping.
func (d *Detected) Prune(t *Table) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.items[:0]
	for _, item := range d.items {
		if !covered(t, item) {
			kept = append(kept, item)
		}
	}
	d.items = kept
}

func covered(t *Table, item DetectedItem) bool {
	if item.Type == DetectedCommand {
		_, ok := t.ByName(item.Name)
		return ok
	}
	_, ok := t.Match(item.ID)
	return ok
}
