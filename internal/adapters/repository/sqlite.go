package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository/migrations"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const shotColumns = `athlete_id, shot_date, shot_time_us, primary_score, secondary_score, match_shot,
	firing_point, divisions, inner_ten, x_mm, y_mm, in_time, time_since_change, sweep_direction,
	demonstration, shoot_index, practice_index, insdel, total_kind, group_enum, fire_kind,
	log_event, log_type, time_of_year, relay_number, weapon_type, shooting_position, target_id,
	external_number, import_date`

// sqliteParams are applied to every pooled connection. Transactions begin
// IMMEDIATE so writers queue on busy_timeout.
const sqliteParams = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
	"&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// SQLiteStore persists shots and athletes in a SQLite database file.
type SQLiteStore struct {
	db        *sql.DB
	publisher *countPublisher
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded schema migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + sqliteParams
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	o := applyOptions(opts)
	s := &SQLiteStore{db: db}
	s.publisher = startCountPublisher(o.metricsUpdateInterval, s.Count)
	return s, nil
}

// Close stops the metrics publisher and closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.publisher.close()
	return s.db.Close()
}

func (s *SQLiteStore) ShotsInRange(ctx context.Context, athleteID int64, from, to model.Date) (out []model.Shot, err error) {
	start := time.Now()
	defer func() { observe("shots_in_range", start, err) }()

	out = []model.Shot{}
	if from.After(to) {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shotColumns+` FROM shot_log
		 WHERE athlete_id = ? AND shot_date BETWEEN ? AND ?
		 ORDER BY shot_date, shot_time_us`,
		athleteID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		shot, err := scanShot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		out = append(out, shot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shots: %w", err)
	}
	return out, nil
}

func scanShot(rows *sql.Rows) (model.Shot, error) {
	var (
		s                model.Shot
		date, importDate string
		timeUS           int64
		ext              sql.NullInt64
		class            int
	)
	err := rows.Scan(
		&s.AthleteID, &date, &timeUS, &s.PrimaryScore, &s.SecondaryScore, &class,
		&s.FiringPoint, &s.Divisions, &s.InnerTen, &s.XMM, &s.YMM, &s.InTime, &s.TimeSinceChange, &s.SweepDirection,
		&s.Demonstration, &s.ShootIndex, &s.PracticeIndex, &s.InsDel, &s.TotalKind, &s.GroupEnum, &s.FireKind,
		&s.LogEvent, &s.LogType, &s.TimeOfYear, &s.RelayNumber, &s.WeaponType, &s.ShootingPosition, &s.TargetID,
		&ext, &importDate,
	)
	if err != nil {
		return model.Shot{}, err
	}
	if s.Date, err = model.ParseDate(date); err != nil {
		return model.Shot{}, err
	}
	if importDate != "" {
		if s.ImportDate, err = model.ParseDate(importDate); err != nil {
			return model.Shot{}, err
		}
	}
	s.Time = model.TimeOfDay(time.Duration(timeUS) * time.Microsecond)
	s.Class = model.Classification(class)
	if ext.Valid {
		v := int(ext.Int64)
		s.ExternalNumber = &v
	}
	return s, nil
}

// InsertShots writes shots in one transaction; existing keys are ignored.
func (s *SQLiteStore) InsertShots(ctx context.Context, shots []model.Shot) (inserted int, err error) {
	start := time.Now()
	defer func() { observe("insert_shots", start, err) }()

	if len(shots) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO shot_log (`+shotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range shots {
		sh := &shots[i]
		var ext sql.NullInt64
		if sh.ExternalNumber != nil {
			ext = sql.NullInt64{Int64: int64(*sh.ExternalNumber), Valid: true}
		}
		importDate := ""
		if !sh.ImportDate.IsZero() {
			importDate = sh.ImportDate.String()
		}
		res, err := stmt.ExecContext(ctx,
			sh.AthleteID, sh.Date.String(), sh.Time.Duration().Microseconds(), sh.PrimaryScore, sh.SecondaryScore, int(sh.Class),
			sh.FiringPoint, sh.Divisions, sh.InnerTen, sh.XMM, sh.YMM, sh.InTime, sh.TimeSinceChange, sh.SweepDirection,
			sh.Demonstration, sh.ShootIndex, sh.PracticeIndex, sh.InsDel, sh.TotalKind, sh.GroupEnum, sh.FireKind,
			sh.LogEvent, sh.LogType, sh.TimeOfYear, sh.RelayNumber, sh.WeaponType, sh.ShootingPosition, sh.TargetID,
			ext, importDate,
		)
		if err != nil {
			return 0, fmt.Errorf("insert shot %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert shot %d: %w", i, err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	if err := validateAthlete(a); err != nil {
		return model.Athlete{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO athletes (id, first_name, last_name, active) VALUES (?, ?, ?, ?)`,
		a.ID, a.FirstName, a.LastName, a.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Athlete{}, fmt.Errorf("athlete %d: %w", a.ID, ErrConflict)
		}
		return model.Athlete{}, fmt.Errorf("insert athlete: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) GetAthlete(ctx context.Context, id int64) (model.Athlete, error) {
	var a model.Athlete
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, active FROM athletes WHERE id = ?`, id,
	).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Athlete{}, fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Athlete{}, fmt.Errorf("get athlete: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAthletes(ctx context.Context) ([]model.Athlete, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, first_name, last_name, active FROM athletes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	defer rows.Close()

	out := []model.Athlete{}
	for rows.Next() {
		var a model.Athlete
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Active); err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate athletes: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateAthlete(ctx context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Athlete{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var a model.Athlete
	err = tx.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, active FROM athletes WHERE id = ?`, id,
	).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Athlete{}, fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Athlete{}, fmt.Errorf("get athlete: %w", err)
	}

	a = u.Apply(a)
	if _, err := tx.ExecContext(ctx,
		`UPDATE athletes SET first_name = ?, last_name = ?, active = ? WHERE id = ?`,
		a.FirstName, a.LastName, a.Active, id); err != nil {
		return model.Athlete{}, fmt.Errorf("update athlete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Athlete{}, fmt.Errorf("commit update: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) DeleteAthlete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM athletes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete athlete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete athlete: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(1) FROM shot_log), (SELECT COUNT(1) FROM athletes)`,
	).Scan(&c.Shots, &c.Athletes)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*SQLiteStore)(nil)
