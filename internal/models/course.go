package models

import "time"

type Course struct {
	ID          int64     `yaml:"id" json:"id"`
	Code        string    `yaml:"code" json:"code"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Credits     int64     `yaml:"credits" json:"credits"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
}
