// Package model contains domain models passed between layers.
package model

// Classification is the SIUS match_shot code of a shot.
type Classification int

// Known classification codes.
const (
	Sighter Classification = 0
	Match   Classification = 1
	Final   Classification = 8
)

func (c Classification) String() string {
	switch c {
	case Sighter:
		return "sighter"
	case Match:
		return "match"
	case Final:
		return "final"
	default:
		return "other"
	}
}

// Log types carried in Shot.LogType.
const (
	LogTypeOwnShot     = 3
	LogTypeCrossShot   = 10
	LogTypeIllegalShot = 12
)

// Shot is one physical shot as exported by the range computer. Apart from the
// natural key (AthleteID, Date, Time), the score fields and Class, every field
// is carried through untouched.
type Shot struct {
	AthleteID      int64          `json:"athlete_id"`
	Date           Date           `json:"shot_date"`
	Time           TimeOfDay      `json:"shot_time"`
	PrimaryScore   float64        `json:"primary_score"`
	SecondaryScore float64        `json:"secondary_score"`
	Class          Classification `json:"match_shot"`

	FiringPoint      int     `json:"firing_point"`
	Divisions        int     `json:"divisions"`
	InnerTen         bool    `json:"inner_ten"`
	XMM              float64 `json:"x_mm"`
	YMM              float64 `json:"y_mm"`
	InTime           bool    `json:"in_time"`
	TimeSinceChange  float64 `json:"time_since_change"`
	SweepDirection   int     `json:"sweep_direction"`
	Demonstration    bool    `json:"demonstration"`
	ShootIndex       int     `json:"shoot_index"`
	PracticeIndex    int     `json:"practice_index"`
	InsDel           int     `json:"insdel"`
	TotalKind        int     `json:"total_kind"`
	GroupEnum        int     `json:"group_enum"`
	FireKind         int     `json:"fire_kind"`
	LogEvent         int     `json:"log_event"`
	LogType          int     `json:"log_type"`
	TimeOfYear       float64 `json:"time_of_year"`
	RelayNumber      int     `json:"relay_number"`
	WeaponType       int     `json:"weapon_type"`
	ShootingPosition int     `json:"shooting_position"`
	TargetID         int     `json:"target_id"`
	ExternalNumber   *int    `json:"external_number,omitempty"`
	ImportDate       Date    `json:"import_date"`
}

// Key identifies a shot within the store.
type Key struct {
	AthleteID int64
	Date      Date
	Time      TimeOfDay
}

// Key returns the natural key of s.
func (s *Shot) Key() Key {
	return Key{AthleteID: s.AthleteID, Date: s.Date, Time: s.Time}
}

// Athlete is a registered shooter.
type Athlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`
}

// AthleteUpdate carries a partial update; nil fields are left unchanged.
type AthleteUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// Apply returns a with the non-nil fields of u applied.
func (u AthleteUpdate) Apply(a Athlete) Athlete {
	if u.FirstName != nil {
		a.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		a.LastName = *u.LastName
	}
	if u.Active != nil {
		a.Active = *u.Active
	}
	return a
}
