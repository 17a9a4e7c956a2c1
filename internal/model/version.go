package model

import "time"

// VersionRecord is one append-only history entry for a parameter row.
// Records are created on every value-changing write and never mutated or
// deleted. Purely inherited visibility has no row and therefore no
// history.
type VersionRecord struct {
	ID            string    `json:"id"`
	ParameterID   string    `json:"parameter_id"`
	VersionNumber int       `json:"version_number"`
	Value         string    `json:"value"`
	UpdatedBy     string    `json:"updated_by"`
	UpdatedAt     time.Time `json:"updated_at"`
}
