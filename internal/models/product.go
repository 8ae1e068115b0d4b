package models

import "time"

// Product represents a product in the store.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" validate:"required,min=3,max=100"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Price       int64     `json:"price" validate:"required,gt=0"`
	Category    string    `json:"category" gorm:"index" validate:"required"`
	SubCategory string    `json:"subCategory" validate:"required"`
	Sizes       []string  `json:"sizes" gorm:"serializer:json"`
	Images      []string  `json:"image" gorm:"serializer:json" validate:"omitempty,dive,url"`
	Bestseller  bool      `json:"bestseller"`
	Date        time.Time `json:"date"`
}
