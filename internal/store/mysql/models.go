package mysql

import "time"

type resourceClass struct {
	ID   int64  `gorm:"primaryKey"`
	Term string `gorm:"size:190;uniqueIndex"`
}

func (resourceClass) TableName() string { return "resource_class" }

type resourceRow struct {
	ID                 int64  `gorm:"primaryKey"`
	ResourceType       string `gorm:"size:190;index"`
	OwnerID            *int64
	ResourceClassID    *int64
	ResourceTemplateID *int64
	IsPublic           bool `gorm:"default:true"`
	Title              string
	Created            time.Time `gorm:"autoCreateTime"`
	Modified           *time.Time
}

func (resourceRow) TableName() string { return "resource" }

type itemItemSet struct {
	ItemID    int64 `gorm:"primaryKey;autoIncrement:false"`
	ItemSetID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (itemItemSet) TableName() string { return "item_item_set" }

type valueRow struct {
	ID           int64  `gorm:"primaryKey"`
	ResourceID   int64  `gorm:"index:value_resource_idx"`
	PropertyTerm string `gorm:"size:190;index:value_resource_idx"`
	ValueText    string `gorm:"type:longtext"`
}

func (valueRow) TableName() string { return "value" }

// dynamicItemSetQuery stores the query as JSON text. MariaDB maps JSON to
// LONGTEXT, so the column type is spelled out.
type dynamicItemSetQuery struct {
	ItemSetID int64  `gorm:"primaryKey;autoIncrement:false"`
	Query     string `gorm:"type:longtext;not null"`
}

func (dynamicItemSetQuery) TableName() string { return "dynamic_item_set_query" }
