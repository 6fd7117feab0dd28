package eventlist

import (
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cyp0633/eventcal/internal/validate"
)

// Sort orders.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Occurrence classes relative to now.
const (
	DisplayPast       = "past"
	DisplayUpcoming   = "upcoming"
	DisplayInProgress = "in-progress"
)

// MaxNumber caps the list length whatever the caller asks for.
const MaxNumber = 100

// DisplayArgs controls which occurrences a list holds and how it is cached.
type DisplayArgs struct {
	Order   string   `json:"order" validate:"oneof=ASC DESC"`
	Number  int      `json:"number" validate:"gte=0"`
	Display []string `json:"display" validate:"min=1,dive,oneof=past upcoming in-progress"`
	// Spread bounds how far into the past and future the search looks.
	Spread string `json:"spread" validate:"span"`
	// Expires is the cache bucket "now" is rounded down to.
	Expires     string `json:"expires" validate:"span"`
	StartOfWeek int    `json:"start_of_week" validate:"gte=0,lte=6"`
	Timezone    string `json:"timezone" validate:"omitempty,tzspec"`
}

// DefaultDisplayArgs lists the next five upcoming occurrences.
func DefaultDisplayArgs() DisplayArgs {
	return DisplayArgs{
		Order:       OrderAsc,
		Number:      5,
		Display:     []string{DisplayUpcoming},
		Spread:      "100 years",
		Expires:     "15 minutes",
		StartOfWeek: 1,
		Timezone:    "UTC",
	}
}

// Normalize fills unset fields from DefaultDisplayArgs, upper-cases the
// order, caps Number at MaxNumber and puts Display in a canonical order
// without repeats, so equal requests share a cache key.
func (a DisplayArgs) Normalize() DisplayArgs {
	def := DefaultDisplayArgs()
	a.Order = strings.ToUpper(strings.TrimSpace(a.Order))
	if a.Order == "" {
		a.Order = def.Order
	}
	if a.Number == 0 {
		a.Number = def.Number
	}
	if a.Number > MaxNumber {
		a.Number = MaxNumber
	}
	if len(a.Display) == 0 {
		a.Display = def.Display
	}
	display := make([]string, 0, len(a.Display))
	for _, d := range a.Display {
		display = append(display, strings.ToLower(strings.TrimSpace(d)))
	}
	slices.SortStableFunc(display, func(x, y string) int {
		return displayRank(x) - displayRank(y)
	})
	a.Display = slices.Compact(display)
	if a.Spread == "" {
		a.Spread = def.Spread
	}
	if a.Expires == "" {
		a.Expires = def.Expires
	}
	return a
}

// displayRank orders classes chronologically; unknown ones sort last and
// fail validation.
func displayRank(class string) int {
	switch class {
	case DisplayPast:
		return 0
	case DisplayInProgress:
		return 1
	case DisplayUpcoming:
		return 2
	default:
		return 3
	}
}

// Wants reports whether class was requested.
func (a DisplayArgs) Wants(class string) bool {
	for _, d := range a.Display {
		if d == class {
			return true
		}
	}
	return false
}

var validArgs = newValidator()

func newValidator() *validator.Validate {
	v := validate.New()
	v.RegisterValidation("span", func(fl validator.FieldLevel) bool {
		_, err := ParseSpan(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks normalized args.
func (a DisplayArgs) Validate() error {
	return validArgs.Struct(a)
}
