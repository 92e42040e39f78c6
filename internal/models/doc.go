// Package models defines the persisted records of the ledger service.
//
// Records reference each other by ID strings rather than pointers. Money fields
// use money.Amount (integer minor units); the calculator package consumes these
// records through small adapter methods (Expense.Ledger, Settlement.Ledger) so
// it never depends on how they are stored.
//
// Models:
//   - User: registered account
//   - Group: set of people sharing expenses
//   - Expense: a payment by one member, divided into Splits
//   - Settlement: a direct payment between two members
//   - Activity: audit trail entry for group mutations
package models
