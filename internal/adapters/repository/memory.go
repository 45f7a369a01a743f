package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// MemoryStore keeps shots and athletes in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	shots    map[int64]map[model.Date][]model.Shot
	keys     map[model.Key]struct{}
	athletes map[int64]model.Athlete
	closed   bool

	publisher *countPublisher
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	s := &MemoryStore{
		shots:    make(map[int64]map[model.Date][]model.Shot),
		keys:     make(map[model.Key]struct{}),
		athletes: make(map[int64]model.Athlete),
	}
	s.publisher = startCountPublisher(o.metricsUpdateInterval, s.Count)
	return s
}

// ShotsInRange returns copies of the stored shots ordered by date then time.
func (s *MemoryStore) ShotsInRange(ctx context.Context, athleteID int64, from, to model.Date) (out []model.Shot, err error) {
	start := time.Now()
	defer func() { observe("shots_in_range", start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out = []model.Shot{}
	if from.After(to) {
		return out, nil
	}
	byDay := s.shots[athleteID]
	days := make([]model.Date, 0, len(byDay))
	for d := range byDay {
		if !d.Before(from) && !d.After(to) {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, model.Date.Compare)
	for _, d := range days {
		dayShots := slices.Clone(byDay[d])
		slices.SortStableFunc(dayShots, func(a, b model.Shot) int { return cmp.Compare(a.Time, b.Time) })
		out = append(out, dayShots...)
	}
	return out, nil
}

func (s *MemoryStore) InsertShots(ctx context.Context, shots []model.Shot) (inserted int, err error) {
	start := time.Now()
	defer func() { observe("insert_shots", start, err) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	for _, shot := range shots {
		k := shot.Key()
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		byDay, ok := s.shots[shot.AthleteID]
		if !ok {
			byDay = make(map[model.Date][]model.Shot)
			s.shots[shot.AthleteID] = byDay
		}
		byDay[shot.Date] = append(byDay[shot.Date], shot)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	if err := validateAthlete(a); err != nil {
		return model.Athlete{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Athlete{}, ErrClosed
	}
	if _, ok := s.athletes[a.ID]; ok {
		return model.Athlete{}, fmt.Errorf("athlete %d: %w", a.ID, ErrConflict)
	}
	s.athletes[a.ID] = a
	return a, nil
}

func (s *MemoryStore) GetAthlete(ctx context.Context, id int64) (model.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Athlete{}, ErrClosed
	}
	a, ok := s.athletes[id]
	if !ok {
		return model.Athlete{}, fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) ListAthletes(ctx context.Context) ([]model.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Athlete, 0, len(s.athletes))
	for _, a := range s.athletes {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Athlete) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) UpdateAthlete(ctx context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Athlete{}, ErrClosed
	}
	a, ok := s.athletes[id]
	if !ok {
		return model.Athlete{}, fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	a = u.Apply(a)
	s.athletes[id] = a
	return a, nil
}

func (s *MemoryStore) DeleteAthlete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.athletes[id]; !ok {
		return fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	delete(s.athletes, id)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{Shots: len(s.keys), Athletes: len(s.athletes)}, nil
}

// Close stops the metrics publisher. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.publisher.close()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
