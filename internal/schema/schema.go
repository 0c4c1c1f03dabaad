// Package schema provides the datamodel description used to pick field encoders:
// tables with their intrinsic fields, and the metadata elements attached to records
// as repeatable attributes.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntrinsicType is the declared column type of an intrinsic field.
type IntrinsicType string

const (
	TypeText              IntrinsicType = "text"
	TypeBit               IntrinsicType = "bit"
	TypeNumber            IntrinsicType = "number"
	TypeTime              IntrinsicType = "time"
	TypeTimeRange         IntrinsicType = "timerange"
	TypeTimecode          IntrinsicType = "timecode"
	TypeDate              IntrinsicType = "date"
	TypeDateRange         IntrinsicType = "daterange"
	TypeDateTime          IntrinsicType = "datetime"
	TypeHistoricDate      IntrinsicType = "historic_date"
	TypeHistoricDateRange IntrinsicType = "historic_daterange"
	TypeHistoricDateTime  IntrinsicType = "historic_datetime"
	TypeTimestamp         IntrinsicType = "timestamp"
)

// Datatype is the declared value datatype of a metadata element.
type Datatype string

const (
	DatatypeText      Datatype = "text"
	DatatypeDateRange Datatype = "daterange"
	DatatypeGeocode   Datatype = "geocode"
	DatatypeCurrency  Datatype = "currency"
	DatatypeLength    Datatype = "length"
	DatatypeWeight    Datatype = "weight"
	DatatypeTimecode  Datatype = "timecode"
	DatatypeInteger   Datatype = "integer"
	DatatypeNumeric   Datatype = "numeric"
	DatatypeList      Datatype = "list"
	DatatypeURL       Datatype = "url"
	DatatypeContainer Datatype = "container"
)

var validIntrinsicTypes = map[IntrinsicType]bool{
	TypeText: true, TypeBit: true, TypeNumber: true, TypeTime: true, TypeTimeRange: true,
	TypeTimecode: true, TypeDate: true, TypeDateRange: true, TypeDateTime: true,
	TypeHistoricDate: true, TypeHistoricDateRange: true, TypeHistoricDateTime: true,
	TypeTimestamp: true,
}

// Field is an intrinsic column of a table.
type Field struct {
	Num      int           `yaml:"num"`
	Name     string        `yaml:"name"`
	Type     IntrinsicType `yaml:"type"`
	ListCode string        `yaml:"list_code"`
}

// Table describes one indexable table.
type Table struct {
	Name           string  `yaml:"name"`
	IdnoField      string  `yaml:"idno_field"`
	IdnoSortField  string  `yaml:"idno_sort_field"`
	IdnoSeparator  string  `yaml:"idno_separator"`
	LabelTable     string  `yaml:"label_table"`
	LabelSortField string  `yaml:"label_sort_field"`
	IsLabel        bool    `yaml:"is_label"`
	Fields         []Field `yaml:"fields"`
}

// Element is a metadata element whose values are attached to records as attributes.
type Element struct {
	ID       int      `yaml:"id"`
	Code     string   `yaml:"code"`
	Datatype Datatype `yaml:"datatype"`
	ListCode string   `yaml:"list_code"`
}

// Config represents the datamodel file.
type Config struct {
	Tables   []Table   `yaml:"tables"`
	Elements []Element `yaml:"elements"`
}

// Errors
var (
	ErrEmptyTableName   = errors.New("table name cannot be empty")
	ErrEmptyFieldName   = errors.New("field name cannot be empty")
	ErrInvalidFieldType = errors.New("invalid intrinsic field type")
	ErrDuplicateTable   = errors.New("duplicate table definition")
	ErrDuplicateField   = errors.New("duplicate field in table")
	ErrEmptyElementCode = errors.New("element code cannot be empty")
	ErrDuplicateElement = errors.New("duplicate element definition")
)

// Schema is the validated, indexed datamodel.
type Schema struct {
	tables      []*Table
	tableByName map[string]*Table
	fields      map[string]map[string]*Field // table -> name -> field
	fieldsByNum map[string]map[int]*Field    // table -> num -> field
	elemByID    map[int]*Element
	elemByCode  map[string]*Element
}

// LoadFromFile loads a datamodel from a YAML file.
func LoadFromFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a datamodel from YAML bytes.
func LoadFromBytes(data []byte) (*Schema, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return New(cfg)
}

// New validates cfg and builds the lookup tables.
func New(cfg Config) (*Schema, error) {
	s := &Schema{
		tableByName: make(map[string]*Table),
		fields:      make(map[string]map[string]*Field),
		fieldsByNum: make(map[string]map[int]*Field),
		elemByID:    make(map[int]*Element),
		elemByCode:  make(map[string]*Element),
	}

	for i := range cfg.Tables {
		t := &cfg.Tables[i]
		if err := ValidateTable(t); err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		if _, ok := s.tableByName[t.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, t.Name)
		}
		s.tables = append(s.tables, t)
		s.tableByName[t.Name] = t
		byName := make(map[string]*Field, len(t.Fields))
		byNum := make(map[int]*Field, len(t.Fields))
		for j := range t.Fields {
			f := &t.Fields[j]
			if f.Num == 0 {
				f.Num = j + 1
			}
			byName[f.Name] = f
			byNum[f.Num] = f
		}
		s.fields[t.Name] = byName
		s.fieldsByNum[t.Name] = byNum
	}

	for i := range cfg.Elements {
		e := &cfg.Elements[i]
		if e.Code == "" {
			return nil, ErrEmptyElementCode
		}
		if e.Datatype == "" {
			e.Datatype = DatatypeText
		}
		if _, ok := s.elemByCode[e.Code]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateElement, e.Code)
		}
		if _, ok := s.elemByID[e.ID]; ok && e.ID != 0 {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateElement, e.ID)
		}
		s.elemByCode[e.Code] = e
		if e.ID != 0 {
			s.elemByID[e.ID] = e
		}
	}

	return s, nil
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table) error {
	if t.Name == "" {
		return ErrEmptyTableName
	}

	seen := make(map[string]bool)
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" {
			return ErrEmptyFieldName
		}
		if f.Type == "" {
			f.Type = TypeText
		}
		if !validIntrinsicTypes[f.Type] {
			return fmt.Errorf("field %q: %w: %s", f.Name, ErrInvalidFieldType, f.Type)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: %w", f.Name, ErrDuplicateField)
		}
		seen[f.Name] = true
	}
	return nil
}

// Tables returns all tables in declaration order.
func (s *Schema) Tables() []*Table {
	return s.tables
}

// TableNames returns the names of all tables in declaration order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names
}

// Table returns a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tableByName[name]
	return t, ok
}

// Field returns an intrinsic field by table and name.
func (s *Schema) Field(table, name string) (*Field, bool) {
	f, ok := s.fields[table][name]
	return f, ok
}

// FieldByNum returns an intrinsic field by table and field number.
func (s *Schema) FieldByNum(table string, num int) (*Field, bool) {
	f, ok := s.fieldsByNum[table][num]
	return f, ok
}

// ElementByID returns a metadata element by id.
func (s *Schema) ElementByID(id int) (*Element, bool) {
	e, ok := s.elemByID[id]
	return e, ok
}

// Element returns a metadata element by code.
func (s *Schema) Element(code string) (*Element, bool) {
	e, ok := s.elemByCode[code]
	return e, ok
}

// ElementDatatype returns the datatype of the element with the given code.
func (s *Schema) ElementDatatype(code string) (Datatype, bool) {
	e, ok := s.elemByCode[code]
	if !ok {
		return "", false
	}
	return e.Datatype, true
}

// FieldRef is a resolved reference to an indexable field.
type FieldRef struct {
	Table     string
	Name      string
	Intrinsic *Field   // set for intrinsic fields
	Element   *Element // set for metadata elements
}

// IsElement reports whether the reference points at a metadata element.
func (r FieldRef) IsElement() bool {
	return r.Element != nil
}

// ErrUnknownField is returned when a field name cannot be resolved.
var ErrUnknownField = errors.New("unknown field")

// Resolve resolves a content field name for a table. Names of the form "I<n>" address
// intrinsics by number, "A<n>" elements by id; anything else is a possibly "/"-pathed
// name whose last segment is tried as an element code first, then as an intrinsic.
func (s *Schema) Resolve(table, name string) (FieldRef, error) {
	if len(name) > 1 && (name[0] == 'I' || name[0] == 'A') {
		if num, err := strconv.Atoi(name[1:]); err == nil {
			if name[0] == 'A' {
				e, ok := s.ElementByID(num)
				if !ok {
					return FieldRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, table, name)
				}
				return FieldRef{Table: table, Name: e.Code, Element: e}, nil
			}
			f, ok := s.FieldByNum(table, num)
			if !ok {
				return FieldRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, table, name)
			}
			return FieldRef{Table: table, Name: f.Name, Intrinsic: f}, nil
		}
	}

	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return FieldRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, table, name)
	}

	if e, ok := s.Element(name); ok {
		return FieldRef{Table: table, Name: e.Code, Element: e}, nil
	}
	ref := FieldRef{Table: table, Name: name}
	if f, ok := s.Field(table, name); ok {
		ref.Intrinsic = f
	}
	return ref, nil
}
