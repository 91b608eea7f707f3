package models

import "time"

// Profile is a saved SearchSpec owned by an actor
type Profile struct {
	Name      string     `json:"name" yaml:"name" validate:"required"`
	ActorID   string     `json:"actor_id" yaml:"-"`
	Spec      SearchSpec `json:"spec" yaml:"spec"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}
