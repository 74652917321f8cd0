package entity

import (
	"time"

	"github.com/google/uuid"
)

// AssignManualRequest moves a product into a group as a manual member.
// GroupID zero means "create a new group"; CanonicalName is required in
// that case and ignored otherwise.
type AssignManualRequest struct {
	ProductID     uint   `json:"product_id" validate:"required"`
	GroupID       uint   `json:"group_id"`
	CanonicalName string `json:"canonical_name"`
}

// FavoriteRequest marks or unmarks a product as favorite.
type FavoriteRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
}

// GroupSummary is one row of the group listing.
type GroupSummary struct {
	ID            uint   `json:"id"`
	CanonicalName string `json:"canonical_name"`
	Origin        string `json:"origin"`
	MemberCount   int    `json:"member_count"`
}

// GroupMemberDetail is one member row with its product and latest price.
type GroupMemberDetail struct {
	ProductWithPrice
	MemberOrigin string `json:"member_origin"`
}

// MatchSuggestion is one candidate equivalence offered to the curation UI.
type MatchSuggestion struct {
	Product ProductWithPrice `json:"product"`
	Score   int              `json:"score"`
}

// ProductListResponse wraps a product listing.
type ProductListResponse struct {
	Products []ProductWithPrice `json:"products"`
	Total    int                `json:"total"`
}

// PriceHistoryResponse wraps a product's observation timeline.
type PriceHistoryResponse struct {
	ProductID    uint               `json:"product_id"`
	Observations []PriceObservation `json:"observations"`
	Total        int                `json:"total"`
}

// GroupListResponse wraps the group listing.
type GroupListResponse struct {
	Groups []GroupSummary `json:"groups"`
	Total  int            `json:"total"`
}

// GroupMembersResponse wraps one group's members.
type GroupMembersResponse struct {
	GroupID       uint                `json:"group_id"`
	CanonicalName string              `json:"canonical_name"`
	Origin        string              `json:"origin"`
	Members       []GroupMemberDetail `json:"members"`
}

// RunEvent is the Kafka payload published when an ingestion run finishes.
type RunEvent struct {
	EventType    string    `json:"event_type"` // RUN_COMPLETED
	RunID        uuid.UUID `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Duration     int64     `json:"duration_ms"`
	Observations int       `json:"observations"`
	Failed       []string  `json:"failed_sources,omitempty"`
	Matches      int       `json:"matches"`
	Timestamp    time.Time `json:"timestamp"`
}
