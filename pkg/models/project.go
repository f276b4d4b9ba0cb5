package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project is a customer site under management. Created by the caller;
// the core only ever mutates its phase_status blob.
type Project struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	SiteURL          string    `db:"site_url" json:"site_url"`
	PhaseStatus      JSONMap   `db:"phase_status" json:"phase_status"`
	BrandWizardState JSONMap   `db:"brand_wizard_state" json:"brand_wizard_state"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// BrandConfig carries the brand voice settings read by the writer and the
// quality checker. One row per project; v2_schema is the free-form wizard
// output, parsed into BrandSchema at component entry.
type BrandConfig struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	BrandName string    `db:"brand_name" json:"brand_name"`
	V2Schema  JSONMap   `db:"v2_schema" json:"v2_schema"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BrandSchema is the typed view of BrandConfig.V2Schema used by the quality
// checker and the writer prompt.
type BrandSchema struct {
	Vocabulary struct {
		Banned []string `json:"banned"`
	} `json:"vocabulary"`
	WordCount struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"word_count"`
	Tone        string   `json:"tone"`
	Competitors []string `json:"competitors"`
}

// ParseBrandSchema deserializes the free-form v2_schema blob into its typed
// view. Unknown keys are ignored; a nil map yields the zero schema.
func ParseBrandSchema(m JSONMap) (BrandSchema, error) {
	var schema BrandSchema
	if len(m) == 0 {
		return schema, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return schema, fmt.Errorf("marshal brand schema: %w", err)
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("parse brand schema: %w", err)
	}
	return schema, nil
}
