package catalog

import (
	"fmt"
	"strings"
)

// Type is the kind of media a Record tracks. Values are persisted as-is.
type Type int

const (
	TypeBook Type = iota + 1
	TypeMagazine
	TypeDVD
	TypeAudioBook
	TypeEBook
	TypeBluRay
	TypeCD
	TypeJournal
)

var typeNames = map[Type]string{
	TypeBook:      "Book",
	TypeMagazine:  "Magazine",
	TypeDVD:       "DVD",
	TypeAudioBook: "AudioBook",
	TypeEBook:     "EBook",
	TypeBluRay:    "BluRay",
	TypeCD:        "CD",
	TypeJournal:   "Journal",
}

var typeDisplayNames = map[Type]string{
	TypeBook:      "Book",
	TypeMagazine:  "Magazine",
	TypeDVD:       "DVD",
	TypeAudioBook: "Audio Book",
	TypeEBook:     "E-Book",
	TypeBluRay:    "Blu-ray",
	TypeCD:        "CD",
	TypeJournal:   "Journal",
}

// AllTypes returns every declared media type in declaration order.
func AllTypes() []Type {
	return []Type{TypeBook, TypeMagazine, TypeDVD, TypeAudioBook, TypeEBook, TypeBluRay, TypeCD, TypeJournal}
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// DisplayName is the human readable label, e.g. "E-Book".
func (t Type) DisplayName() string {
	if name, ok := typeDisplayNames[t]; ok {
		return name
	}
	return t.String()
}

// RequiresISBN reports whether records of this type must carry an ISBN.
func (t Type) RequiresISBN() bool {
	return t == TypeBook || t == TypeEBook
}

func (t Type) IsDigital() bool {
	return t == TypeEBook || t == TypeAudioBook
}

// ParseType resolves a type name case-insensitively. Display names
// ("E-Book", "Blu-ray", "Audio Book") are accepted as well.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, t := range AllTypes() {
		if strings.EqualFold(s, typeNames[t]) || strings.EqualFold(s, typeDisplayNames[t]) {
			return t, true
		}
	}
	return 0, false
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid media type %d", int(t))
	}
	return []byte(typeNames[t]), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, ok := ParseType(string(b))
	if !ok {
		return fmt.Errorf("unknown media type %q", string(b))
	}
	*t = parsed
	return nil
}
