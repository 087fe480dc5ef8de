package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/novaclub/club-sync/catalog"
)

// TextTimestampLayout is a fixed width layout, so stored timestamps compare
// correctly as text.
const TextTimestampLayout = "2006-01-02T15:04:05.000000Z"

// Dialect renders the catalog driven SQL shared by the relational stores.
type Dialect struct {
	Placeholder func(n int) string
	// TimeAsText binds and scans dates and timestamps as text.
	TimeAsText bool
	// LockRows appends FOR UPDATE to the lookup done before a write.
	LockRows bool
}

func QuestionMark(int) string { return "?" }

func Dollar(n int) string { return "$" + strconv.Itoa(n) }

func quote(name string) string {
	return `"` + name + `"`
}

func (d Dialect) columnList(s *catalog.Schema) string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = quote(c.Name)
	}
	return strings.Join(cols, ", ")
}

func (d Dialect) ListSQL(s *catalog.Schema, withSince bool) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE club_id = %s", d.columnList(s), quote(s.Table), d.Placeholder(1))
	if withSince {
		q += " AND updated_at > " + d.Placeholder(2)
	}
	return q + " ORDER BY updated_at, id"
}

func (d Dialect) GetSQL(s *catalog.Schema, forWrite bool) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE club_id = %s AND id = %s",
		d.columnList(s), quote(s.Table), d.Placeholder(1), d.Placeholder(2))
	if forWrite && d.LockRows {
		q += " FOR UPDATE"
	}
	return q
}

func (d Dialect) OwnerSQL(s *catalog.Schema) string {
	return fmt.Sprintf("SELECT club_id FROM %s WHERE id = %s", quote(s.Table), d.Placeholder(1))
}

func (d Dialect) InsertSQL(s *catalog.Schema) string {
	ph := make([]string, len(s.Columns))
	for i := range s.Columns {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.Table), d.columnList(s), strings.Join(ph, ", "))
}

// UpdateSQL sets every column except the identity ones; the trailing two
// placeholders are club_id and id.
func (d Dialect) UpdateSQL(s *catalog.Schema) string {
	var sets []string
	n := 0
	for _, c := range updatable(s) {
		n++
		sets = append(sets, quote(c.Name)+" = "+d.Placeholder(n))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE club_id = %s AND id = %s",
		quote(s.Table), strings.Join(sets, ", "), d.Placeholder(n+1), d.Placeholder(n+2))
}

func (d Dialect) DeleteSQL(s *catalog.Schema) string {
	return fmt.Sprintf("DELETE FROM %s WHERE club_id = %s AND id = %s", quote(s.Table), d.Placeholder(1), d.Placeholder(2))
}

func updatable(s *catalog.Schema) []catalog.Column {
	var cols []catalog.Column
	for _, c := range s.Columns {
		switch c.Name {
		case catalog.ColID, catalog.ColClubID, catalog.ColCreatedAt:
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func (d Dialect) InsertArgs(s *catalog.Schema, row catalog.Fields) []any {
	args := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		args[i] = d.bind(c, row[c.Name])
	}
	return args
}

func (d Dialect) UpdateArgs(s *catalog.Schema, row catalog.Fields) []any {
	var args []any
	for _, c := range updatable(s) {
		args = append(args, d.bind(c, row[c.Name]))
	}
	return append(args, row.Str(catalog.ColClubID), row.Str(catalog.ColID))
}

// BindTime renders an instant compared against updated_at.
func (d Dialect) BindTime(t time.Time) any {
	t = t.UTC().Truncate(time.Microsecond)
	if d.TimeAsText {
		return t.Format(TextTimestampLayout)
	}
	return t
}

func (d Dialect) bind(c catalog.Column, v any) any {
	t, ok := v.(time.Time)
	if !ok || !d.TimeAsText {
		return v
	}
	if c.Type == catalog.TypeDate {
		return catalog.FormatDate(t)
	}
	return d.BindTime(t)
}

// ScanTargets returns one destination per schema column, suitable for both
// database/sql and pgx row scanning.
func (d Dialect) ScanTargets(s *catalog.Schema) []any {
	targets := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		switch c.Type {
		case catalog.TypeDate, catalog.TypeTimestamp:
			if d.TimeAsText {
				targets[i] = new(*string)
			} else {
				targets[i] = new(*time.Time)
			}
		case catalog.TypeDecimal:
			targets[i] = new(*float64)
		case catalog.TypeInteger:
			targets[i] = new(*int64)
		case catalog.TypeBoolean:
			targets[i] = new(*bool)
		default:
			targets[i] = new(*string)
		}
	}
	return targets
}

func (d Dialect) Record(kind catalog.Kind, targets []any) (*Record, error) {
	s := kind.Schema()
	fields := make(catalog.Fields, len(s.Columns))
	for i, c := range s.Columns {
		v, err := d.decode(c, targets[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s: %w", s.Table, c.Name, err)
		}
		fields[c.Name] = v
	}
	return &Record{Kind: kind, ID: fields.Str(catalog.ColID), Fields: fields}, nil
}

func (d Dialect) decode(c catalog.Column, target any) (any, error) {
	switch p := target.(type) {
	case **string:
		if *p == nil {
			return nil, nil
		}
		s := **p
		switch c.Type {
		case catalog.TypeDate:
			return catalog.ParseDate(s)
		case catalog.TypeTimestamp:
			if t, err := time.Parse(TextTimestampLayout, s); err == nil {
				return t, nil
			}
			t, ok := catalog.ParseTimestamp(s)
			if !ok {
				return nil, fmt.Errorf("invalid timestamp %q", s)
			}
			return t, nil
		}
		return s, nil
	case **time.Time:
		if *p == nil {
			return nil, nil
		}
		t := (**p).UTC()
		if c.Type == catalog.TypeDate {
			y, m, day := t.Date()
			return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
		}
		return t, nil
	case **float64:
		if *p == nil {
			return nil, nil
		}
		return **p, nil
	case **int64:
		if *p == nil {
			return nil, nil
		}
		return **p, nil
	case **bool:
		if *p == nil {
			return nil, nil
		}
		return **p, nil
	}
	return nil, fmt.Errorf("unexpected scan target %T", target)
}
