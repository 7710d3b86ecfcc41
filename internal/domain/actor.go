package domain

import (
	"time"

	"github.com/google/uuid"
)

type Currency string

const (
	CurrencySAR Currency = "SAR"
	CurrencyAED Currency = "AED"
	CurrencyEGP Currency = "EGP"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencySAR, CurrencyAED, CurrencyEGP:
		return true
	}
	return false
}

type Role string

const (
	RoleDriver   Role = "driver"
	RoleManager  Role = "manager"
	RoleAgent    Role = "agent"
	RoleInvestor Role = "investor"
	RoleCompany  Role = "company"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDriver, RoleManager, RoleAgent, RoleInvestor, RoleCompany:
		return true
	}
	return false
}

type ActorStatus string

const (
	ActorStatusActive   ActorStatus = "active"
	ActorStatusDisabled ActorStatus = "disabled"
)

// Actor is a party that can hold a settlement balance. Actors are provisioned
// by the identity subsystem; this engine only reads them. Country is empty for
// company-level actors, which are not scoped to a single country.
type Actor struct {
	ID        uuid.UUID
	Name      string
	Role      Role
	Country   string
	Currency  Currency
	Status    ActorStatus
	CreatedAt time.Time
}

func (a *Actor) IsCountryScoped() bool {
	return a.Role == RoleDriver || a.Role == RoleManager
}
