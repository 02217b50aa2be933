// Package mapping holds the link between controller names and Hue resources.
//
// A mapping Entry says "the controller calls this light kitchen". Entries
// are persisted in SQLite and loaded into an immutable Table, which also
// carries the indexes the event matcher needs:
//
//   - name → entry (command lookups)
//   - resource id → entry (direct event matches)
//   - service id → owning device id, and device id → entries (a motion
//     sensor's battery or temperature service resolves to the entry that
//     maps its motion service)
//
// Tables are rebuilt wholesale, either when the entries change or when the
// device list is re-read from the bridge. Readers never see a partial table.
package mapping
