package entity

import (
	"time"

	"github.com/google/uuid"
)

// Group origins. Manual groups are user-asserted and automatic matching
// never rewrites their manually assigned members.
const (
	OriginManual    = "manual"
	OriginAutomatic = "automatic"
)

// Product is one source-scoped catalog row: one row per
// (source_id, external_id). The internal ID never changes once assigned,
// even when the source renames or recategorizes the product.
type Product struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SourceID   string    `json:"source_id" gorm:"size:64;not null;uniqueIndex:idx_products_source_external"`
	ExternalID string    `json:"external_id" gorm:"size:128;not null;uniqueIndex:idx_products_source_external"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Format     string    `json:"format"`
	URL        *string   `json:"url,omitempty"`
	ImageURL   *string   `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceObservation is one append-only history row. CapturedAt is the
// timestamp of the ingestion run that produced it, not the write time.
// Rows are never updated or deleted; an unchanged price is still recorded
// (the product was checked and confirmed stable).
type PriceObservation struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ProductID    uint      `json:"product_id" gorm:"not null;index:idx_observations_product_captured"`
	Price        float64   `json:"price"`
	PricePerUnit *float64  `json:"price_per_unit,omitempty"`
	CapturedAt   time.Time `json:"captured_at" gorm:"not null;index:idx_observations_product_captured"`
}

// EquivalenceGroup is a set of products from different sources judged to
// be the same real-world item.
type EquivalenceGroup struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	CanonicalName string        `json:"canonical_name" gorm:"not null"`
	Origin        string        `json:"origin" gorm:"size:16;not null"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Members       []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`
}

// GroupMember links a product into a group. ProductID is globally unique
// (a product belongs to at most one group) and (group_id, source_id) is
// unique (a group never holds two products of the same source). Origin is
// per membership: manual memberships survive automatic passes.
type GroupMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GroupID   uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_members_group_source"`
	ProductID uint      `json:"product_id" gorm:"not null;uniqueIndex"`
	SourceID  string    `json:"source_id" gorm:"size:64;not null;uniqueIndex:idx_group_members_group_source"`
	Origin    string    `json:"origin" gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite marks a product of interest. Create/delete only.
type Favorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProductID uint      `json:"product_id" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizedRecord is the common shape every collector emits, whatever
// the source API looks like.
type NormalizedRecord struct {
	SourceID     string   `json:"source_id" validate:"required"`
	ExternalID   string   `json:"external_id" validate:"required"`
	Name         string   `json:"name"`
	Price        float64  `json:"price" validate:"gte=0"`
	PricePerUnit *float64 `json:"price_per_unit,omitempty"`
	Format       string   `json:"format"`
	Category     string   `json:"category"`
	URL          *string  `json:"url,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
}

// ProductWithPrice joins a product with its most recent observation.
// Price fields are nil for products that were never priced.
type ProductWithPrice struct {
	Product
	Price        *float64   `json:"price,omitempty"`
	PricePerUnit *float64   `json:"price_per_unit,omitempty"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
}

// Record failure reason codes reported per source in a RunReport.
const (
	FailureValidation     = "validation_error"
	FailureUnknownProduct = "unknown_product"
	FailureAuthExpired    = "authentication_expired"
	FailureNetwork        = "network_error"
	FailureCancelled      = "cancelled"
)

// Source statuses in a RunReport.
const (
	SourceStatusOK     = "ok"
	SourceStatusFailed = "failed"
)

// RecordFailure describes one skipped record.
type RecordFailure struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// SourceReport aggregates one source's outcome within a run.
type SourceReport struct {
	SourceID      string          `json:"source_id"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Upserted      int             `json:"upserted"`
	Refreshed     int             `json:"refreshed"`
	Observations  int             `json:"observations"`
	Failures      []RecordFailure `json:"failures,omitempty"`
	Elapsed       time.Duration   `json:"elapsed_ns"`
}

// MatchSummary aggregates the automatic matching pass of a run.
type MatchSummary struct {
	Candidates    int `json:"candidates"`
	GroupsCreated int `json:"groups_created"`
	Assigned      int `json:"assigned"`
	Revised       int `json:"revised"`
	SkippedNames  int `json:"skipped_names"`
}

// RunReport is the operator-facing summary of one ingestion run.
type RunReport struct {
	RunID      uuid.UUID               `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration_ns"`
	CapturedAt time.Time               `json:"captured_at"`
	Sources    map[string]SourceReport `json:"sources"`
	Matching   *MatchSummary           `json:"matching,omitempty"`
	Cancelled  bool                    `json:"cancelled,omitempty"`
}

// TotalObservations sums appended observations across sources.
func (r *RunReport) TotalObservations() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Observations
	}
	return total
}

// FailedSources lists source ids that failed, for logging and alerts.
func (r *RunReport) FailedSources() []string {
	var failed []string
	for id, s := range r.Sources {
		if s.Status == SourceStatusFailed {
			failed = append(failed, id)
		}
	}
	return failed
}

// Stats is the aggregate snapshot served to the dashboard collaborator.
type Stats struct {
	TotalProducts     int64            `json:"total_products"`
	TotalObservations int64            `json:"total_observations"`
	TotalSources      int64            `json:"total_sources"`
	TotalGroups       int64            `json:"total_groups"`
	TotalFavorites    int64            `json:"total_favorites"`
	FirstCapture      *time.Time       `json:"first_capture,omitempty"`
	LastCapture       *time.Time       `json:"last_capture,omitempty"`
	ProductsPerSource map[string]int64 `json:"products_per_source"`
}
