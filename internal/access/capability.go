package access

import "strings"

// Capability is a set of permission flags carried by a global role.
type Capability uint8

const (
	CapView Capability = 1 << iota
	CapEdit
	CapCreate
	CapDelete
	CapApprove
	CapAdmin
)

const CapAll = CapView | CapEdit | CapCreate | CapDelete | CapApprove | CapAdmin

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapView, "VIEW"},
	{CapEdit, "EDIT"},
	{CapCreate, "CREATE"},
	{CapDelete, "DELETE"},
	{CapApprove, "APPROVE"},
	{CapAdmin, "ADMIN"},
}

// FromMask converts a stored permissions column into a Capability, dropping
// unknown bits.
func FromMask(mask int) Capability {
	return Capability(mask) & CapAll
}

// Has reports whether every flag in required is present.
func (c Capability) Has(required Capability) bool {
	return c&required == required
}

func (c Capability) String() string {
	if c == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range capabilityNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
