package models

import "time"

type Lab struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Capacity    int64     `yaml:"capacity" json:"capacity"`
	Equipment   string    `yaml:"equipment" json:"equipment"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time `yaml:"-" json:"updated_at"`
}
