package models

// Activity actions.
const (
	ActionGroupCreated      = "group.created"
	ActionMembersAdded      = "group.members_added"
	ActionExpenseCreated    = "expense.created"
	ActionExpenseUpdated    = "expense.updated"
	ActionExpenseDeleted    = "expense.deleted"
	ActionSettlementCreated = "settlement.created"
	ActionSettlementDeleted = "settlement.deleted"
)

// Activity is one entry in a group's audit trail.
type Activity struct {
	ID           string
	GroupID      string
	ActorID      string
	Action       string
	ResourceType string // "Group", "Expense" or "Settlement"
	ResourceID   string

	// Summary is a short human-readable description, e.g. "Dinner 90.00".
	Summary string

	CreatedAt int64
}
