package models

// GroupType classifies a group for display.
type GroupType string

const (
	GroupTypeTrip  GroupType = "trip"
	GroupTypeHome  GroupType = "home"
	GroupTypeTeam  GroupType = "team"
	GroupTypeEvent GroupType = "event"
	GroupTypeOther GroupType = "other"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	switch t {
	case GroupTypeTrip, GroupTypeHome, GroupTypeTeam, GroupTypeEvent, GroupTypeOther:
		return true
	}
	return false
}

// GroupStatus tracks whether a group is still in use.
type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusSettled  GroupStatus = "settled"
	GroupStatusArchived GroupStatus = "archived"
)

// Group is a set of people who share expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Lisbon trip").
	Name string

	Description string
	Type        GroupType

	// Currency is the single currency all of the group's amounts are recorded in.
	Currency string

	// Members is the list of user IDs in this group.
	Members []string

	// CreatedBy is the user ID of the group's creator.
	CreatedBy string

	Status GroupStatus

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
