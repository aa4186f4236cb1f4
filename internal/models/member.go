package models

import (
	"fmt"
	"strings"
	"time"
)

// Preference is a member's preferred clothing style
type Preference string

const (
	PreferenceMinimal Preference = "MINIMAL"
	PreferenceCasual  Preference = "CASUAL"
	PreferenceStreet  Preference = "STREET"
	PreferenceClassic Preference = "CLASSIC"
	PreferenceDandy   Preference = "DANDY"
	PreferenceRetro   Preference = "RETRO"
)

var preferenceNames = map[string]Preference{
	"MINIMAL": PreferenceMinimal,
	"CASUAL":  PreferenceCasual,
	"STREET":  PreferenceStreet,
	"CLASSIC": PreferenceClassic,
	"DANDY":   PreferenceDandy,
	"RETRO":   PreferenceRetro,
}

// ParsePreference maps a name to a Preference, rejecting unknown names
func ParsePreference(name string) (Preference, error) {
	p, ok := preferenceNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", &ValidationError{
			Field:   "preferences",
			Value:   name,
			Message: fmt.Sprintf("unknown preference: %q", name),
		}
	}
	return p, nil
}

// Tendency describes how a member tolerates temperature
type Tendency string

const (
	TendencyHot  Tendency = "HOT"  // feels heat easily
	TendencyCold Tendency = "COLD" // feels cold easily
)

// ParseTendency maps a name to a Tendency, rejecting unknown names
func ParseTendency(name string) (Tendency, error) {
	switch Tendency(strings.ToUpper(strings.TrimSpace(name))) {
	case TendencyHot:
		return TendencyHot, nil
	case TendencyCold:
		return TendencyCold, nil
	}
	return "", &ValidationError{
		Field:   "tendencies",
		Value:   name,
		Message: fmt.Sprintf("unknown tendency: %q", name),
	}
}

// ClothCategory groups clothes by where they are worn
type ClothCategory string

const (
	CategoryOuter  ClothCategory = "OUTER"
	CategoryTop    ClothCategory = "TOP"
	CategoryBottom ClothCategory = "BOTTOM"
)

// Cloth is a single clothing item a member owns
type Cloth string

const (
	ClothPufferJacket Cloth = "PUFFER_JACKET"
	ClothCoat         Cloth = "COAT"
	ClothFleece       Cloth = "FLEECE"
	ClothJacket       Cloth = "JACKET"
	ClothWindbreaker  Cloth = "WINDBREAKER"

	ClothSweater     Cloth = "SWEATER"
	ClothHoodie      Cloth = "HOODIE"
	ClothShirt       Cloth = "SHIRT"
	ClothLongSleeve  Cloth = "LONG_SLEEVE"
	ClothShortSleeve Cloth = "SHORT_SLEEVE"

	ClothJeans       Cloth = "JEANS"
	ClothCottonPants Cloth = "COTTON_PANTS"
	ClothShorts      Cloth = "SHORTS"
)

var clothCategories = map[Cloth]ClothCategory{
	ClothPufferJacket: CategoryOuter,
	ClothCoat:         CategoryOuter,
	ClothFleece:       CategoryOuter,
	ClothJacket:       CategoryOuter,
	ClothWindbreaker:  CategoryOuter,
	ClothSweater:      CategoryTop,
	ClothHoodie:       CategoryTop,
	ClothShirt:        CategoryTop,
	ClothLongSleeve:   CategoryTop,
	ClothShortSleeve:  CategoryTop,
	ClothJeans:        CategoryBottom,
	ClothCottonPants:  CategoryBottom,
	ClothShorts:       CategoryBottom,
}

// ParseCloth maps a name to a Cloth, rejecting unknown names
func ParseCloth(name string) (Cloth, error) {
	c := Cloth(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := clothCategories[c]; !ok {
		return "", &ValidationError{
			Field:   "clothes",
			Value:   name,
			Message: fmt.Sprintf("unknown cloth: %q", name),
		}
	}
	return c, nil
}

// Category returns the category of c
func (c Cloth) Category() ClothCategory {
	return clothCategories[c]
}

// ValidateWardrobe checks that clothes cover every category
func ValidateWardrobe(clothes []Cloth) error {
	seen := make(map[ClothCategory]bool, 3)
	for _, c := range clothes {
		seen[c.Category()] = true
	}
	for _, cat := range []ClothCategory{CategoryOuter, CategoryTop, CategoryBottom} {
		if !seen[cat] {
			return &ValidationError{
				Field:   "clothes",
				Value:   string(cat),
				Message: fmt.Sprintf("clothes must include at least one %s item", strings.ToLower(string(cat))),
			}
		}
	}
	return nil
}

// Member is a registered user
type Member struct {
	ID           int64        `json:"id" db:"id"`
	LoginID      string       `json:"loginId" db:"login_id"`
	Name         string       `json:"name" db:"name"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Preferences  []Preference `json:"preferences" db:"-"`
	Tendencies   []Tendency   `json:"tendencies" db:"-"`
	Clothes      []Cloth      `json:"clothes" db:"-"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// JoinEnums renders enum values as a comma-joined string for storage
func JoinEnums[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// SplitEnums parses a comma-joined string with parse, skipping empty entries
func SplitEnums[T ~string](joined string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0)
	for _, part := range strings.Split(joined, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
