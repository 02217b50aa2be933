package mapping

import (
	"fmt"
	"strings"

	"github.com/nerrad567/loxhue-core/internal/hue"
)

// Kind is the role a mapped resource plays for the controller.
type Kind string

// Mapping kinds.
const (
	KindLight  Kind = "light"
	KindGroup  Kind = "group"
	KindSensor Kind = "sensor"
	KindButton Kind = "button"
)

// AllResourceID marks an entry that fans a command out to every light and group.
const AllResourceID = "pseudo-all"

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLight, KindGroup, KindSensor, KindButton:
		return true
	default:
		return false
	}
}

// Commandable reports whether commands may be sent to this kind.
func (k Kind) Commandable() bool {
	return k == KindLight || k == KindGroup
}

// ResourceType returns the CLIP v2 resource type commands are sent to.
func (k Kind) ResourceType() hue.ResourceType {
	if k == KindGroup {
		return hue.TypeGroupedLight
	}
	return hue.TypeLight
}

// Entry links one controller name to one Hue resource.
// JSON names follow the mapping files of earlier releases.
type Entry struct {
	Name          string `json:"loxone_name"`
	ResourceID    string `json:"hue_uuid"`
	Type          Kind   `json:"hue_type"`
	SyncTelemetry bool   `json:"sync_lox"`
	DisplayName   string `json:"hue_name,omitempty"`
}

// IsAll reports whether the entry is a bulk alias.
func (e Entry) IsAll() bool {
	return e.ResourceID == AllResourceID
}

// Normalize lower-cases and trims the controller name. Incoming command
// names are lower-cased before lookup.
func (e Entry) Normalize() Entry {
	e.Name = strings.ToLower(strings.TrimSpace(e.Name))
	e.ResourceID = strings.TrimSpace(e.ResourceID)
	return e
}

// Validate checks a normalised entry.
func (e Entry) Validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	case strings.ContainsAny(e.Name, "/ "):
		return fmt.Errorf("%w: name %q must not contain '/' or spaces", ErrInvalidEntry, e.Name)
	case e.ResourceID == "":
		return fmt.Errorf("%w: %s: resource id is required", ErrInvalidEntry, e.Name)
	case !e.Type.Valid():
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidEntry, e.Name, e.Type)
	}
	return nil
}

// Prepare normalises and validates a full mapping, rejecting duplicate names.
// Entries with an empty name are dropped, as older mapping files contain them.
func Prepare(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		e = e.Normalize()
		if e.Name == "" {
			continue
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out, nil
}
