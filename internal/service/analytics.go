package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/rpc"
)

var ProcedureGetUserAnalytics = rpc.Procedure(balanceServiceName, "GetUserAnalytics")

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 24
)

type GetUserAnalyticsRequest struct {
	// Months is the length of the monthly trend, including the current month.
	Months int `json:"months,omitempty"`
}

// CategorySpend is the caller's share of expenses in one category.
type CategorySpend struct {
	Category string       `json:"category"`
	Total    money.Amount `json:"total"`
	Count    int          `json:"count"`
}

// MonthlySpend is the caller's share of expenses dated in one calendar month (UTC).
type MonthlySpend struct {
	Month string       `json:"month"` // YYYY-MM
	Total money.Amount `json:"total"`
	Count int          `json:"count"`
}

// CurrencyAnalytics aggregates the caller's spending in one currency.
type CurrencyAnalytics struct {
	Currency string `json:"currency"`
	// TotalPaid is the sum of expenses the caller paid for.
	TotalPaid money.Amount `json:"total_paid"`
	// TotalShare is the sum of the caller's splits.
	TotalShare money.Amount     `json:"total_share"`
	Categories []CategorySpend `json:"categories"`
	Monthly    []MonthlySpend  `json:"monthly"`
}

type GetUserAnalyticsResponse struct {
	Since      int64               `json:"since"` // start of the monthly trend, Unix seconds
	Currencies []CurrencyAnalytics `json:"currencies"`
}

// trendStart returns the first instant of the month months-1 before now.
func trendStart(now time.Time, months int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
}

// analyze folds the caller's payments and splits into per-currency totals.
// Categories are ordered by total, largest first; months oldest first.
func analyze(userID string, expenses []*models.Expense, since time.Time) []CurrencyAnalytics {
	type acc struct {
		out        CurrencyAnalytics
		categories map[string]*CategorySpend
		months     map[string]*MonthlySpend
	}
	byCurrency := make(map[string]*acc)
	get := func(currency string) *acc {
		a, ok := byCurrency[currency]
		if !ok {
			a = &acc{
				out:        CurrencyAnalytics{Currency: currency},
				categories: make(map[string]*CategorySpend),
				months:     make(map[string]*MonthlySpend),
			}
			byCurrency[currency] = a
		}
		return a
	}

	for _, e := range expenses {
		if e.Deleted {
			continue
		}
		split, inSplit := e.SplitFor(userID)
		if e.PayerID != userID && !inSplit {
			continue
		}
		a := get(e.Currency)
		if e.PayerID == userID {
			a.out.TotalPaid += e.Amount
		}
		if !inSplit {
			continue
		}
		a.out.TotalShare += split.Amount

		category := string(e.Category)
		c, ok := a.categories[category]
		if !ok {
			c = &CategorySpend{Category: category}
			a.categories[category] = c
		}
		c.Total += split.Amount
		c.Count++

		date := time.Unix(e.Date, 0).UTC()
		if date.Before(since) {
			continue
		}
		key := date.Format("2006-01")
		m, ok := a.months[key]
		if !ok {
			m = &MonthlySpend{Month: key}
			a.months[key] = m
		}
		m.Total += split.Amount
		m.Count++
	}

	out := make([]CurrencyAnalytics, 0, len(byCurrency))
	for _, a := range byCurrency {
		a.out.Categories = make([]CategorySpend, 0, len(a.categories))
		for _, c := range a.categories {
			a.out.Categories = append(a.out.Categories, *c)
		}
		sort.Slice(a.out.Categories, func(i, j int) bool {
			ci, cj := a.out.Categories[i], a.out.Categories[j]
			if ci.Total != cj.Total {
				return ci.Total > cj.Total
			}
			return ci.Category < cj.Category
		})

		a.out.Monthly = make([]MonthlySpend, 0, len(a.months))
		for _, m := range a.months {
			a.out.Monthly = append(a.out.Monthly, *m)
		}
		sort.Slice(a.out.Monthly, func(i, j int) bool {
			return a.out.Monthly[i].Month < a.out.Monthly[j].Month
		})
		out = append(out, a.out)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// GetUserAnalytics reports what the caller paid and what their share came to
// across all of their groups, broken down by category and by month.
func (s *BalanceService) GetUserAnalytics(ctx context.Context, req *connect.Request[GetUserAnalyticsRequest]) (*connect.Response[GetUserAnalyticsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetUserAnalytics request received", "user_id", userID, "months", req.Msg.Months)

	months := req.Msg.Months
	switch {
	case months < 0:
		return nil, invalidArgument("months must not be negative")
	case months == 0:
		months = defaultTrendMonths
	case months > maxTrendMonths:
		months = maxTrendMonths
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("GetUserAnalytics failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	var expenses []*models.Expense
	for _, group := range groups {
		list, err := s.store.ListExpensesByGroup(ctx, group.ID)
		if err != nil {
			slog.Error("GetUserAnalytics failed", "group_id", group.ID, "error", err)
			return nil, toConnectError(err)
		}
		expenses = append(expenses, list...)
	}

	since := trendStart(time.Now(), months)
	resp := &GetUserAnalyticsResponse{
		Since:      since.Unix(),
		Currencies: analyze(userID, expenses, since),
	}

	slog.Info("GetUserAnalytics successful",
		"user_id", userID,
		"groups_count", len(groups),
		"expenses_count", len(expenses),
	)
	return connect.NewResponse(resp), nil
}
