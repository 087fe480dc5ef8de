package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type ColumnType int

const (
	TypeString ColumnType = iota
	TypeText
	TypeEnum
	TypeDate
	TypeTimestamp
	TypeDecimal
	TypeInteger
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeEnum:
		return "enum"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeDecimal:
		return "decimal"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Column describes one stored field. Canonical Go values per type are
// string (string, text, enum), time.Time (date, timestamp), float64
// (decimal), int64 (integer) and bool (boolean). NULL is nil.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  any
	Values   []string
}

// Required reports whether the column has to be supplied when a record is
// created.
func (c Column) Required() bool {
	return !c.Nullable && c.Default == nil
}

const (
	ColID          = "id"
	ColClubID      = "club_id"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColDeviceID    = "device_id"
	ColSyncVersion = "sync_version"
)

var baseColumns = []Column{
	{Name: ColID, Type: TypeString},
	{Name: ColClubID, Type: TypeString},
	{Name: ColCreatedAt, Type: TypeTimestamp},
	{Name: ColUpdatedAt, Type: TypeTimestamp},
	{Name: ColDeviceID, Type: TypeString, Nullable: true},
	{Name: ColSyncVersion, Type: TypeInteger, Default: int64(1)},
}

// Managed columns are owned by the store and never taken from client input.
func Managed(name string) bool {
	switch name {
	case ColCreatedAt, ColUpdatedAt, ColSyncVersion:
		return true
	}
	return false
}

// Schema is the typed shape of one entity table.
type Schema struct {
	Table string
	// Author is stamped with the acting user's id when a record is created
	// through the API. Empty when the entity has no author column.
	Author string
	// Columns holds the domain columns; the shared base columns are
	// prepended when the catalog is initialized.
	Columns []Column

	index map[string]int
}

func (s *Schema) build() {
	cols := make([]Column, 0, len(baseColumns)+len(s.Columns))
	cols = append(cols, baseColumns...)
	cols = append(cols, s.Columns...)
	s.Columns = cols
	s.index = make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := s.index[c.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate column %s.%s", s.Table, c.Name))
		}
		s.index[c.Name] = i
	}
}

func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Fields is a record's typed field map, keyed by column name.
type Fields map[string]any

func (f Fields) Str(name string) string {
	v, _ := f[name].(string)
	return v
}

func (f Fields) Time(name string) time.Time {
	v, _ := f[name].(time.Time)
	return v
}

func (f Fields) Int(name string) int64 {
	v, _ := f[name].(int64)
	return v
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// Coerce converts client supplied data into canonical field values. Keys
// that are not columns of the schema, and columns managed by the store,
// are dropped.
func (s *Schema) Coerce(data map[string]any) (Fields, error) {
	out := make(Fields, len(data))
	for key, raw := range data {
		col, ok := s.Column(key)
		if !ok || Managed(key) {
			continue
		}
		v, err := col.coerce(raw)
		if err != nil {
			return nil, &FieldError{Field: key, Message: err.Error()}
		}
		out[key] = v
	}
	return out, nil
}

// Defaults returns the default value of every column that declares one.
func (s *Schema) Defaults() Fields {
	out := make(Fields)
	for _, c := range s.Columns {
		if c.Default != nil {
			out[c.Name] = c.Default
		}
	}
	return out
}

// Validate checks that every column is present with a value of its
// canonical type and that non-nullable columns are set.
func (s *Schema) Validate(f Fields) error {
	for _, c := range s.Columns {
		v, ok := f[c.Name]
		if !ok || v == nil {
			if c.Nullable {
				continue
			}
			return &FieldError{Field: c.Name, Message: "required"}
		}
		if _, err := c.coerce(v); err != nil {
			return &FieldError{Field: c.Name, Message: err.Error()}
		}
	}
	return nil
}

// Encode renders every declared column of f into JSON friendly values.
func (s *Schema) Encode(f Fields) map[string]any {
	out := make(map[string]any, len(s.Columns))
	for _, c := range s.Columns {
		v := f[c.Name]
		switch t := v.(type) {
		case time.Time:
			if c.Type == TypeDate {
				out[c.Name] = FormatDate(t)
			} else {
				out[c.Name] = FormatTimestamp(t)
			}
		default:
			out[c.Name] = v
		}
	}
	return out
}

func (c Column) coerce(raw any) (any, error) {
	if raw == nil {
		if !c.Nullable {
			return nil, fmt.Errorf("must not be null")
		}
		return nil, nil
	}
	switch c.Type {
	case TypeString, TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		for _, allowed := range c.Values {
			if strings.EqualFold(s, allowed) {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(c.Values, ", "))
	case TypeDate:
		switch v := raw.(type) {
		case time.Time:
			return truncateDate(v), nil
		case string:
			t, err := ParseDate(v)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
		return nil, fmt.Errorf("expected date string, got %T", raw)
	case TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, ok := ParseTimestamp(v)
			if !ok {
				return nil, fmt.Errorf("invalid timestamp %q", v)
			}
			return t, nil
		}
		return nil, fmt.Errorf("expected timestamp string, got %T", raw)
	case TypeDecimal:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		return f, nil
	case TypeInteger:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("expected integer, got %v", raw)
		}
		return int64(f), nil
	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported column type %v", c.Type)
}

func toFloat(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %v", raw)
	}
	return f, nil
}
