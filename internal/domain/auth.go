package domain

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID       string
	Capabilities CapabilitySet
}

// NewActor builds an actor from a directory user.
func NewActor(user *User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Capabilities: user.Capabilities()}
}

// Authenticated reports whether the caller identity resolved.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) IsStaff() bool {
	return a.Capabilities.Has(CapabilityStaff)
}

func (a Actor) IsAdmin() bool {
	return a.Capabilities.Has(CapabilityAdmin)
}

func (a Actor) IsCustomer() bool {
	return a.Capabilities.Has(CapabilityCustomer)
}
