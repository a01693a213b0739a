package domain

// Capability is one permission a caller may hold.
type Capability uint8

const (
	CapabilityCustomer Capability = 1 << iota
	CapabilityStaff
	CapabilityCareStaff
	CapabilityAdmin
)

// CapabilitySet is a bitmask of capabilities resolved once per request.
type CapabilitySet uint8

var roleCapabilities = map[RoleCode][]Capability{
	RoleCustomer:       {CapabilityCustomer},
	RoleCareStaff:      {CapabilityStaff, CapabilityCareStaff},
	RoleTechnicalStaff: {CapabilityStaff, CapabilityCareStaff},
	RoleAdmin:          {CapabilityStaff, CapabilityAdmin},
}

// CapabilitiesFromRoles maps role codes to their capability set. Unknown codes grant nothing.
func CapabilitiesFromRoles(roles []RoleCode) CapabilitySet {
	var set CapabilitySet
	for _, role := range roles {
		for _, capability := range roleCapabilities[role] {
			set |= CapabilitySet(capability)
		}
	}
	return set
}

// NewCapabilitySet builds a set from explicit capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

// Has reports membership.
func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

// Names lists the capability names, used in /me responses.
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, 4)
	if s.Has(CapabilityCustomer) {
		names = append(names, "customer")
	}
	if s.Has(CapabilityStaff) {
		names = append(names, "staff")
	}
	if s.Has(CapabilityCareStaff) {
		names = append(names, "care_staff")
	}
	if s.Has(CapabilityAdmin) {
		names = append(names, "admin")
	}
	return names
}
