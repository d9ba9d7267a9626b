package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// money renders as a JSON number, e.g. "balance": 50.5
	decimal.MarshalJSONWithoutQuotes = true
}

// Domain models matching the database schema in db/migrations/000001_init.up.sql

type Role string

const (
	RoleClient     Role = "client"
	RoleContractor Role = "contractor"
)

type ContractStatus string

const (
	ContractNew        ContractStatus = "new"
	ContractInProgress ContractStatus = "in_progress"
	ContractTerminated ContractStatus = "terminated"
)

type Profile struct {
	ID         int64           `json:"id" db:"id"`
	FirstName  string          `json:"firstName" db:"first_name"`
	LastName   string          `json:"lastName" db:"last_name"`
	Profession string          `json:"profession" db:"profession"`
	Balance    decimal.Decimal `json:"balance" db:"balance_cents"`
	Role       Role            `json:"type" db:"role"`
	Created    time.Time       `json:"createdAt" db:"created"`
	Updated    time.Time       `json:"updatedAt" db:"updated"`
}

// FullName joins first and last name with a single space.
func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Contract struct {
	ID           int64          `json:"id" db:"id"`
	Terms        string         `json:"terms" db:"terms"`
	Status       ContractStatus `json:"status" db:"status"`
	ClientID     int64          `json:"ClientId" db:"client_id"`
	ContractorID int64          `json:"ContractorId" db:"contractor_id"`
	Created      time.Time      `json:"createdAt" db:"created"`
	Updated      time.Time      `json:"updatedAt" db:"updated"`

	// Populated by lookups that join the owning profiles.
	Client     *Profile `json:"Client,omitempty" db:"-"`
	Contractor *Profile `json:"Contractor,omitempty" db:"-"`
}

// IsParty reports whether the profile is the client or the contractor of c.
func (c *Contract) IsParty(profileID int64) bool {
	return c.ClientID == profileID || c.ContractorID == profileID
}

type Job struct {
	ID          int64           `json:"id" db:"id"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price_cents"`
	Paid        bool            `json:"paid" db:"paid"`
	PaymentDate *time.Time      `json:"paymentDate" db:"payment_date"`
	ContractID  int64           `json:"ContractId" db:"contract_id"`
	Created     time.Time       `json:"createdAt" db:"created"`
	Updated     time.Time       `json:"updatedAt" db:"updated"`
}

// JobWithContract is a job joined with the contract it belongs to.
type JobWithContract struct {
	Job
	Contract Contract `json:"Contract"`
}

type ProfessionTotal struct {
	Profession string          `json:"profession"`
	Total      decimal.Decimal `json:"total"`
}

type ClientTotal struct {
	ID       int64           `json:"id"`
	FullName string          `json:"fullName"`
	Paid     decimal.Decimal `json:"paid"`
}

// ReportFilter narrows the paid jobs considered by aggregate reports.
// A zero ProfileID means site-wide.
type ReportFilter struct {
	ProfileID int64
	Start     *time.Time
	End       *time.Time
	Limit     int
}
