// Package repository defines the shot and athlete store contract and its
// in-memory and SQLite implementations.
package repository

import (
	"context"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/period"
)

// Counts reports how many rows a store holds.
type Counts struct {
	Shots    int `json:"shots"`
	Athletes int `json:"athletes"`
}

// ShotWriter persists imported shots.
type ShotWriter interface {
	// InsertShots stores shots and returns how many were new. Shots whose
	// (athlete, date, time) key is already stored are skipped.
	InsertShots(ctx context.Context, shots []model.Shot) (int, error)
}

// AthleteStore manages registered athletes.
type AthleteStore interface {
	// CreateAthlete returns ErrConflict when the id is taken.
	CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error)
	GetAthlete(ctx context.Context, id int64) (model.Athlete, error)
	// ListAthletes returns every athlete ordered by id.
	ListAthletes(ctx context.Context) ([]model.Athlete, error)
	UpdateAthlete(ctx context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error)
	DeleteAthlete(ctx context.Context, id int64) error
}

// Store is the full persistence contract of the service.
type Store interface {
	period.Supplier
	ShotWriter
	AthleteStore

	Count(ctx context.Context) (Counts, error)
	Close() error
}

func validateAthlete(a model.Athlete) error {
	if a.ID <= 0 {
		return ErrInvalidAthlete
	}
	return nil
}
