// Package domain defines the persistence models for products and the
// comparisons generated between them. These types are mapped with GORM and
// shared by the repository and service layers.
package domain

import "time"

// Product is a single comparable item identified by its normalized slug.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Slug: normalized product identifier; unique.
//   - Name: display name as last seen in a query.
//   - Brand / Category: coarse metadata inferred when the product is first seen.
type Product struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Slug      string    `json:"slug"      gorm:"type:varchar(255);not null;uniqueIndex:ux_products_slug"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	Brand     string    `json:"brand"     gorm:"type:varchar(128)"`
	Category  string    `json:"category"  gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Comparison is the durable record of one ordered product pair. It is created
// exactly once per Key; later requests only bump ViewCount and LastViewedAt.
// GeneratedContent is written on creation and never changed.
type Comparison struct {
	ID               string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Key              string    `json:"key"              gorm:"type:varchar(512);not null;uniqueIndex:ux_comparisons_key"`
	Title            string    `json:"title"            gorm:"type:varchar(512);not null"`
	Product1ID       string    `json:"product1Id"       gorm:"type:char(36);not null;index"`
	Product2ID       string    `json:"product2Id"       gorm:"type:char(36);not null;index"`
	ViewCount        int64     `json:"viewCount"        gorm:"not null;default:1;index:idx_comparisons_views"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	LastViewedAt     time.Time `json:"lastViewedAt"     gorm:"not null;index:idx_comparisons_last_viewed"`
	GeneratedContent string    `json:"generatedContent" gorm:"type:text"`
	Query            string    `json:"query"            gorm:"type:text"`

	Product1 *Product `json:"product1,omitempty" gorm:"foreignKey:Product1ID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Product2 *Product `json:"product2,omitempty" gorm:"foreignKey:Product2ID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Comparison.
func (Comparison) TableName() string { return "comparisons" }
