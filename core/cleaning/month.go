package cleaning

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const monthLayout = "2006-01-02"

var (
	ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM or YYYY-MM-DD")

	monthNames = map[string][12]string{
		LangHebrew: {"ינואר", "פברואר", "מרץ", "אפריל", "מאי", "יוני", "יולי", "אוגוסט", "ספטמבר", "אוקטובר", "נובמבר", "דצמבר"},
		LangEnglish: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October",
			"November", "December"},
	}
)

// Month is a calendar month; payments are keyed by (case, Month).
// It is always stored and serialized as the first day of the month.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	// normalizes overflows, i.e. month 13
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the calendar month `t` falls in, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth accepts "YYYY-MM", "YYYY-MM-DD" and RFC3339 timestamps; the day is ignored.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", monthLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, errors.Wrapf(ErrInvalidMonth, "%q", s)
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Time returns midnight UTC of the first day of the month.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) Equal(o Month) bool  { return m.Year == o.Year && m.Month == o.Month }
func (m Month) Before(o Month) bool { return m.Time().Before(o.Time()) }
func (m Month) AddMonths(n int) Month {
	return NewMonth(m.Year, m.Month+time.Month(n))
}

// Contains reports whether `t` falls in the month, in t's location.
func (m Month) Contains(t time.Time) bool {
	return MonthOf(t).Equal(m)
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return m.Time().Format(monthLayout)
}

// Name returns the month name in the given language, Hebrew by default.
func (m Month) Name(lang string) string {
	if m.Month < time.January || m.Month > time.December {
		return ""
	}
	names, ok := monthNames[lang]
	if !ok {
		names = monthNames[LangHebrew]
	}
	return names[m.Month-1]
}

// Label returns the human readable month and year, i.e. "ינואר 2025" or "January 2025".
func (m Month) Label(lang string) string {
	return fmt.Sprintf("%s %d", m.Name(lang), m.Year)
}

func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Month{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidMonth
	}
	return m.UnmarshalParam(s)
}

// UnmarshalParam binds query params, see echo.BindUnmarshaler.
func (m *Month) UnmarshalParam(param string) error {
	if param == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(param)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Month) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Month{}
	case time.Time:
		*m = Month{Year: v.Year(), Month: v.Month()}
	case []byte:
		return m.UnmarshalParam(string(v))
	case string:
		return m.UnmarshalParam(v)
	default:
		return fmt.Errorf("cleaning.Month: cannot scan %T", value)
	}
	return nil
}

func (m Month) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return m.Time(), nil
}
