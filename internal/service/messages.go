package service

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Wire messages. Amounts travel as decimal strings (see money.Amount).

type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	DefaultCurrency string `json:"default_currency"`
	CreatedAt       int64  `json:"created_at"`
}

type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Currency    string   `json:"currency"`
	Members     []string `json:"members"`
	CreatedBy   string   `json:"created_by"`
	Status      string   `json:"status"`
	CreatedAt   int64    `json:"created_at"`
}

// Participant is one person selected for an expense together with the
// weighting their split policy needs.
type Participant struct {
	PersonID    string          `json:"person_id"`
	Percentage  decimal.Decimal `json:"percentage"`
	ExactAmount money.Amount    `json:"exact_amount"`
	Shares      int64           `json:"shares"`
}

type Split struct {
	PersonID   string          `json:"person_id"`
	Amount     money.Amount    `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Shares     int64           `json:"shares"`
	IsPaid     bool            `json:"is_paid"`
	PaidAt     int64           `json:"paid_at,omitempty"`
}

type Expense struct {
	ID          string       `json:"id"`
	GroupID     string       `json:"group_id"`
	Description string       `json:"description"`
	Notes       string       `json:"notes,omitempty"`
	Amount      money.Amount `json:"amount"`
	Currency    string       `json:"currency"`
	Category    string       `json:"category"`
	Date        int64        `json:"date"`
	PayerID     string       `json:"payer_id"`
	SplitMethod string       `json:"split_method"`
	Splits      []Split      `json:"splits"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

type Settlement struct {
	ID                string       `json:"id"`
	GroupID           string       `json:"group_id"`
	FromUserID        string       `json:"from_user_id"`
	ToUserID          string       `json:"to_user_id"`
	Amount            money.Amount `json:"amount"`
	Currency          string       `json:"currency"`
	PaymentMethod     string       `json:"payment_method"`
	Status            string       `json:"status"`
	Note              string       `json:"note,omitempty"`
	CoveredExpenseIDs []string     `json:"covered_expense_ids,omitempty"`
	CreatedBy         string       `json:"created_by"`
	CreatedAt         int64        `json:"created_at"`
}

type Activity struct {
	ID           string `json:"id"`
	ActorID      string `json:"actor_id"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Summary      string `json:"summary,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// Payment is a suggested transfer produced by debt simplification.
type Payment struct {
	FromUserID string       `json:"from_user_id"`
	ToUserID   string       `json:"to_user_id"`
	Amount     money.Amount `json:"amount"`
	Display    string       `json:"display"`
}

type MemberBalance struct {
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Net         money.Amount `json:"net"` // positive = is owed, negative = owes
	Display     string       `json:"display"`
}

func toUserMsg(u *models.User) *User {
	return &User{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		DefaultCurrency: u.DefaultCurrency,
		CreatedAt:       u.CreatedAt,
	}
}

func toGroupMsg(g *models.Group) *Group {
	return &Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Type:        string(g.Type),
		Currency:    g.Currency,
		Members:     g.Members,
		CreatedBy:   g.CreatedBy,
		Status:      string(g.Status),
		CreatedAt:   g.CreatedAt,
	}
}

func toExpenseMsg(e *models.Expense) *Expense {
	splits := make([]Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = Split{
			PersonID:   s.PersonID,
			Amount:     s.Amount,
			Percentage: s.Percentage,
			Shares:     s.Shares,
			IsPaid:     s.IsPaid,
			PaidAt:     s.PaidAt,
		}
	}
	return &Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Notes:       e.Notes,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Category:    string(e.Category),
		Date:        e.Date,
		PayerID:     e.PayerID,
		SplitMethod: string(e.SplitMethod),
		Splits:      splits,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toSettlementMsg(s *models.Settlement) *Settlement {
	return &Settlement{
		ID:                s.ID,
		GroupID:           s.GroupID,
		FromUserID:        s.FromUserID,
		ToUserID:          s.ToUserID,
		Amount:            s.Amount,
		Currency:          s.Currency,
		PaymentMethod:     string(s.PaymentMethod),
		Status:            string(s.Status),
		Note:              s.Note,
		CoveredExpenseIDs: s.CoveredExpenseIDs,
		CreatedBy:         s.CreatedBy,
		CreatedAt:         s.CreatedAt,
	}
}

func toActivityMsg(a *models.Activity) *Activity {
	return &Activity{
		ID:           a.ID,
		ActorID:      a.ActorID,
		Action:       a.Action,
		ResourceType: a.ResourceType,
		ResourceID:   a.ResourceID,
		Summary:      a.Summary,
		CreatedAt:    a.CreatedAt,
	}
}

func toPayments(txns []calculator.Transaction, currency string) []Payment {
	out := make([]Payment, len(txns))
	for i, t := range txns {
		out[i] = Payment{
			FromUserID: t.FromID,
			ToUserID:   t.ToID,
			Amount:     t.Amount,
			Display:    money.Format(t.Amount, currency),
		}
	}
	return out
}

func toCalculatorParticipants(ps []Participant) []calculator.Participant {
	out := make([]calculator.Participant, len(ps))
	for i, p := range ps {
		out[i] = calculator.Participant{
			PersonID:    p.PersonID,
			Percentage:  p.Percentage,
			ExactAmount: p.ExactAmount,
			Shares:      p.Shares,
		}
	}
	return out
}
