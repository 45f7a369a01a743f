// Package ingest decodes and encodes SIUS range computer CSV exports.
//
// An export is one file per day. The file name starts with the day as
// YYYYMMDD and every row is one shot with 28 semicolon separated columns.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// Columns is the number of fields in one export row.
const Columns = 28

const fileDateLayout = "20060102"

// Column positions within an export row.
const (
	colAthleteID = iota
	colPrimaryScore
	colMatchShot
	colFiringPoint
	colSecondaryScore
	colDivisions
	colShotTime
	colInnerTen
	colXMM
	colYMM
	colInTime
	colTimeSinceChange
	colSweepDirection
	colDemonstration
	colShootIndex
	colPracticeIndex
	colInsDel
	colTotalKind
	colGroupEnum
	colFireKind
	colLogEvent
	colLogType
	colTimeOfYear
	colRelayNumber
	colWeaponType
	colShootingPosition
	colTargetID
	colExternalNumber
)

// FileDate extracts the shot date from an export file name such as
// "20250614_range3.csv".
func FileDate(filename string) (model.Date, error) {
	base := filepath.Base(filename)
	if !strings.EqualFold(filepath.Ext(base), ".csv") {
		return model.Date{}, fmt.Errorf("%w: %q is not a .csv file", ErrUnsupportedFile, base)
	}
	if len(base) < len(fileDateLayout) {
		return model.Date{}, fmt.Errorf("%w: %q has no date prefix", ErrUnsupportedFile, base)
	}
	t, err := time.Parse(fileDateLayout, base[:len(fileDateLayout)])
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %q has no date prefix", ErrUnsupportedFile, base)
	}
	return model.DateOf(t), nil
}

// FileName returns the export file name for day with an optional suffix.
func FileName(day model.Date, suffix string) string {
	name := day.Time().Format(fileDateLayout)
	if suffix != "" {
		name += "_" + suffix
	}
	return name + ".csv"
}

// Parse decodes an export file. importDate is stamped on every shot. Any
// malformed row fails the whole file and no shots are returned.
func Parse(filename string, content []byte, importDate model.Date) ([]model.Shot, error) {
	day, err := FileDate(filename)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var shots []model.Shot
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, fmt.Errorf("%s line %d: %w: %v", filepath.Base(filename), line, ErrMalformedRow, err)
		}
		line, _ := r.FieldPos(0)
		s, err := decodeRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %v", filepath.Base(filename), line, ErrMalformedRow, err)
		}
		s.Date = day
		s.ImportDate = importDate
		shots = append(shots, s)
	}
	return shots, nil
}

// rowDecoder accumulates the first conversion error so a row can be decoded
// field by field without checking after every column.
type rowDecoder struct {
	record []string
	err    error
}

func (d *rowDecoder) field(i int) string {
	return strings.TrimSpace(d.record[i])
}

func (d *rowDecoder) fail(i int, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("column %d (%q): %w", i+1, d.record[i], err)
	}
}

func (d *rowDecoder) int(i int) int {
	v, err := strconv.Atoi(d.field(i))
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *rowDecoder) float(i int) float64 {
	v, err := strconv.ParseFloat(d.field(i), 64)
	if err != nil {
		d.fail(i, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		d.fail(i, errNotFinite)
		return 0
	}
	return v
}

// flag reads an integer column where any non-zero value is true.
func (d *rowDecoder) flag(i int) bool {
	return d.int(i) != 0
}

func decodeRow(record []string) (model.Shot, error) {
	if len(record) < Columns {
		return model.Shot{}, fmt.Errorf("expected %d columns, got %d", Columns, len(record))
	}
	d := &rowDecoder{record: record}

	athleteID, err := strconv.ParseInt(d.field(colAthleteID), 10, 64)
	if err != nil {
		d.fail(colAthleteID, err)
	}
	tod, err := model.ParseTimeOfDay(d.field(colShotTime))
	if err != nil {
		d.fail(colShotTime, err)
	}

	s := model.Shot{
		AthleteID:        athleteID,
		Time:             tod,
		PrimaryScore:     d.float(colPrimaryScore),
		SecondaryScore:   d.float(colSecondaryScore),
		Class:            model.Classification(d.int(colMatchShot)),
		FiringPoint:      d.int(colFiringPoint),
		Divisions:        d.int(colDivisions),
		InnerTen:         d.flag(colInnerTen),
		XMM:              d.float(colXMM),
		YMM:              d.float(colYMM),
		InTime:           d.flag(colInTime),
		TimeSinceChange:  d.float(colTimeSinceChange),
		SweepDirection:   d.int(colSweepDirection),
		Demonstration:    d.flag(colDemonstration),
		ShootIndex:       d.int(colShootIndex),
		PracticeIndex:    d.int(colPracticeIndex),
		InsDel:           d.int(colInsDel),
		TotalKind:        d.int(colTotalKind),
		GroupEnum:        d.int(colGroupEnum),
		FireKind:         d.int(colFireKind),
		LogEvent:         d.int(colLogEvent),
		LogType:          d.int(colLogType),
		TimeOfYear:       d.float(colTimeOfYear),
		RelayNumber:      d.int(colRelayNumber),
		WeaponType:       d.int(colWeaponType),
		ShootingPosition: d.int(colShootingPosition),
		TargetID:         d.int(colTargetID),
	}
	if ext := d.field(colExternalNumber); ext != "" {
		v := d.int(colExternalNumber)
		s.ExternalNumber = &v
	}
	if d.err != nil {
		return model.Shot{}, d.err
	}
	return s, nil
}

// Encode writes shots in export format. Dates are not part of a row; callers
// group shots per day and name the file with FileName.
func Encode(w io.Writer, shots []model.Shot) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	record := make([]string, Columns)
	for i := range shots {
		encodeRow(record, &shots[i])
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("encode shot %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(record []string, s *model.Shot) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	i := strconv.Itoa

	record[colAthleteID] = strconv.FormatInt(s.AthleteID, 10)
	record[colPrimaryScore] = f(s.PrimaryScore)
	record[colMatchShot] = i(int(s.Class))
	record[colFiringPoint] = i(s.FiringPoint)
	record[colSecondaryScore] = f(s.SecondaryScore)
	record[colDivisions] = i(s.Divisions)
	record[colShotTime] = formatShotTime(s.Time)
	record[colInnerTen] = b(s.InnerTen)
	record[colXMM] = f(s.XMM)
	record[colYMM] = f(s.YMM)
	record[colInTime] = b(s.InTime)
	record[colTimeSinceChange] = f(s.TimeSinceChange)
	record[colSweepDirection] = i(s.SweepDirection)
	record[colDemonstration] = b(s.Demonstration)
	record[colShootIndex] = i(s.ShootIndex)
	record[colPracticeIndex] = i(s.PracticeIndex)
	record[colInsDel] = i(s.InsDel)
	record[colTotalKind] = i(s.TotalKind)
	record[colGroupEnum] = i(s.GroupEnum)
	record[colFireKind] = i(s.FireKind)
	record[colLogEvent] = i(s.LogEvent)
	record[colLogType] = i(s.LogType)
	record[colTimeOfYear] = f(s.TimeOfYear)
	record[colRelayNumber] = i(s.RelayNumber)
	record[colWeaponType] = i(s.WeaponType)
	record[colShootingPosition] = i(s.ShootingPosition)
	record[colTargetID] = i(s.TargetID)
	record[colExternalNumber] = ""
	if s.ExternalNumber != nil {
		record[colExternalNumber] = i(*s.ExternalNumber)
	}
}

// formatShotTime always writes a fraction, as the range computer does.
func formatShotTime(t model.TimeOfDay) string {
	d := t.Duration()
	micro := (d % time.Second) / time.Microsecond
	whole := model.TimeOfDay(d - d%time.Second)
	return fmt.Sprintf("%s.%06d", whole, micro)
}
