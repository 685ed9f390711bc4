package model

import "time"

// ServiceOffering is a priced service tier of the catalog
type ServiceOffering struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tier        string    `json:"tier"`
	Description string    `json:"description,omitempty"`
	UnitPrices  Resources `json:"unit_prices"` // price per unit per hour
	SLA         float64   `json:"sla"`         // uptime percent
	RTO         int       `json:"rto"`         // seconds
	RPO         int       `json:"rpo"`         // seconds
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CostEstimate is returned by the catalog cost calculation
type CostEstimate struct {
	OfferingID string    `json:"offering_id"`
	Usage      Resources `json:"usage"`
	Hours      float64   `json:"hours"`
	Breakdown  Resources `json:"breakdown"`
	Total      float64   `json:"total"`
}
