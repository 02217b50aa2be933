package mapping

// Table is an immutable snapshot of the mapping and its lookup indexes.
// A nil *Table behaves as an empty one.
type Table struct {
	entries    []Entry
	byName     map[string]int
	byResource map[string]int
	owners     map[string]string
	byDevice   map[string][]int
}

// NewTable indexes entries. owners maps service ids to device ids and may
// be nil when the device list has not been read yet.
func NewTable(entries []Entry, owners map[string]string) *Table {
	t := &Table{
		entries:    append([]Entry(nil), entries...),
		byName:     make(map[string]int, len(entries)),
		byResource: make(map[string]int, len(entries)),
		owners:     owners,
		byDevice:   make(map[string][]int),
	}
	if t.owners == nil {
		t.owners = map[string]string{}
	}

	for i, e := range t.entries {
		if _, dup := t.byName[e.Name]; !dup {
			t.byName[e.Name] = i
		}
		if _, dup := t.byResource[e.ResourceID]; !dup {
			t.byResource[e.ResourceID] = i
		}
		if device, ok := t.owners[e.ResourceID]; ok {
			t.byDevice[device] = append(t.byDevice[device], i)
		}
	}
	return t
}

// WithEntries returns a new table with the same device ownership data.
func (t *Table) WithEntries(entries []Entry) *Table {
	if t == nil {
		return NewTable(entries, nil)
	}
	return NewTable(entries, t.owners)
}

// WithOwners returns a new table with the same entries and new ownership data.
func (t *Table) WithOwners(owners map[string]string) *Table {
	return NewTable(t.Entries(), owners)
}

// Entries returns a copy of all entries in mapping order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// ByName finds an entry by controller name.
func (t *Table) ByName(name string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Match resolves an event's resource id to an entry: direct id first, then
// any entry whose resource lives on the same physical device.
func (t *Table) Match(resourceID string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	if i, ok := t.byResource[resourceID]; ok {
		return t.entries[i], true
	}
	device, ok := t.owners[resourceID]
	if !ok {
		return Entry{}, false
	}
	if idx := t.byDevice[device]; len(idx) > 0 {
		return t.entries[idx[0]], true
	}
	return Entry{}, false
}

// OnDevice returns every entry whose resource belongs to the device.
func (t *Table) OnDevice(deviceID string) []Entry {
	if t == nil {
		return nil
	}
	idx := t.byDevice[deviceID]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.entries[i])
	}
	return out
}

// DeviceOf returns the device owning a service id.
func (t *Table) DeviceOf(resourceID string) (string, bool) {
	if t == nil {
		return "", false
	}
	device, ok := t.owners[resourceID]
	return device, ok
}

// Commandable returns the light and group entries, skipping bulk aliases.
func (t *Table) Commandable() []Entry {
	if t == nil {
		return nil
	}
	var out []Entry
	for _, e := range t.entries {
		if e.Type.Commandable() && !e.IsAll() {
			out = append(out, e)
		}
	}
	return out
}
