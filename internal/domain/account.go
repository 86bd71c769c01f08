// Package domain contains core business types and interfaces.
//
// This file defines the Account domain type. Accounts are tenants of the
// application and the unit of subscription and usage metering. Identity and
// sessions are owned by the managed auth service; this type only holds what
// the metering core needs.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a lab or clinic tenant.
type Account struct {
	ID               uuid.UUID
	Email            string
	Name             string
	StripeCustomerID string // empty until the account first checks out
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCustomer returns true if the account has a payment-provider customer reference.
func (a *Account) HasCustomer() bool {
	return a.StripeCustomerID != ""
}

// DisplayName returns the account name or email if name is empty.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// EnsureAccountParams carries the identity claims used to create or refresh
// an account row on first sight of a session.
type EnsureAccountParams struct {
	ID    uuid.UUID
	Email string
	Name  string
}
