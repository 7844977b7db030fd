package model

import "time"

// TrialPlan is the plan name recorded on trial credentials.
const TrialPlan = "trial"

// Credential is a time-boxed access grant. UUID doubles as the user id inside
// ConfigBlob.
type Credential struct {
	UUID         string
	OwnerID      string
	Plan         string
	PeriodMonths int // 0 for trials
	CreatedAt    time.Time
	ExpiresAt    time.Time
	IsActive     bool
	IsTrial      bool
	ConfigBlob   string
}

// ExpiredAt reports whether the credential is past its lifetime at now.
// A credential expiring exactly at now is already expired.
func (c *Credential) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// NeedsDeactivation is true for rows still flagged active after expiry.
func (c *Credential) NeedsDeactivation(now time.Time) bool {
	return c.IsActive && c.ExpiredAt(now)
}

// CredentialExpiry computes the lifetime end for a purchased period.
func CredentialExpiry(issuedAt time.Time, periodMonths int) time.Time {
	return issuedAt.AddDate(0, periodMonths, 0)
}

type CredentialStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Inactive      int `json:"inactive"`
	ExpiredActive int `json:"expiredActive"` // active rows the sweep has not reached yet
	Trial         int `json:"trial"`
	ActiveTrial   int `json:"activeTrial"`
}
