package ofx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

// Converter performs bidirectional conversion between OFX element text and a
// typed value, enforcing the constraints declared for the field. Convert
// fails with a SpecViolation on malformed or out-of-constraint input;
// Unconvert is the inverse and fails if the value itself violates the
// constraint.
type Converter interface {
	Convert(text string) (interface{}, error)
	Unconvert(value interface{}) (string, error)
}

// Bool converts the OFX boolean literals Y/N. Any other token is invalid.
type Bool struct{}

func (Bool) Convert(text string) (interface{}, error) {
	switch text {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	}
	return nil, violation(ViolationValue, "%q is not one of the allowed values Y, N", text)
}

func (Bool) Unconvert(value interface{}) (string, error) {
	b, ok := value.(bool)
	if !ok {
		return "", violation(ViolationValue, "%v is not a bool", value)
	}
	if b {
		return "Y", nil
	}
	return "N", nil
}

// entityReplacer unescapes the entities FIs use in element text, per OFX
// section 2.3. FIs tend to mix &amp; match, so the full set is handled.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&nbsp;", " ",
	"&apos;", "'",
	"&quot;", `"`,
)

// String converts general text, enforcing a maximum length. A zero Length
// means unbounded. Relaxed strings log over-length values instead of failing,
// for fields FIs are known to be sloppy about.
type String struct {
	Length  int
	Relaxed bool
}

func (s String) enforceLength(value string) (string, error) {
	if s.Length > 0 && len(value) > s.Length {
		if s.Relaxed {
			glog.Warningf("%q exceeds max length=%d", value, s.Length)
			return value, nil
		}
		return "", violation(ViolationValue, "%q exceeds max length=%d", value, s.Length)
	}
	return value, nil
}

func (s String) Convert(text string) (interface{}, error) {
	v, err := s.enforceLength(entityReplacer.Replace(text))
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s String) Unconvert(value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", violation(ViolationValue, "%v is not a string", value)
	}
	return s.enforceLength(v)
}

// OneOf converts a value restricted to a fixed set of literals.
type OneOf struct {
	Valid []string
}

func (o OneOf) check(value string) error {
	for _, v := range o.Valid {
		if v == value {
			return nil
		}
	}
	return violation(ViolationValue, "%q is not one of %v", value, o.Valid)
}

func (o OneOf) Convert(text string) (interface{}, error) {
	if err := o.check(text); err != nil {
		return nil, err
	}
	return text, nil
}

func (o OneOf) Unconvert(value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", violation(ViolationValue, "%v is not a string", value)
	}
	if err := o.check(v); err != nil {
		return "", err
	}
	return v, nil
}

// Integer converts integer element text, enforcing a maximum digit count.
// A zero Digits means unbounded.
type Integer struct {
	Digits int
}

func (i Integer) enforceDigits(value int64) error {
	if i.Digits > 0 {
		max := int64(1)
		for n := 0; n < i.Digits; n++ {
			max *= 10
		}
		if value >= max {
			return violation(ViolationValue, "%d has too many digits; max digits=%d", value, i.Digits)
		}
	}
	return nil
}

func (i Integer) Convert(text string) (interface{}, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, violation(ViolationValue, "%q is not an integer", text)
	}
	if err := i.enforceDigits(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (i Integer) Unconvert(value interface{}) (string, error) {
	v, ok := value.(int64)
	if !ok {
		return "", violation(ViolationValue, "%v is not an int64", value)
	}
	if err := i.enforceDigits(v); err != nil {
		return "", err
	}
	return strconv.FormatInt(v, 10), nil
}

// Decimal converts decimal element text, quantized to Scale decimal places.
// A zero Scale leaves the parsed precision untouched. Both '.' and ',' are
// accepted as the fractional separator; some European FIs send commas.
type Decimal struct {
	Scale int
}

func (d Decimal) Convert(text string) (interface{}, error) {
	v, err := decimal.NewFromString(text)
	if err != nil {
		v, err = decimal.NewFromString(strings.Replace(text, ",", ".", 1))
		if err != nil {
			return nil, violation(ViolationValue, "%q is not a decimal", text)
		}
	}
	if d.Scale > 0 {
		v = v.Round(int32(d.Scale))
	}
	return v, nil
}

func (d Decimal) Unconvert(value interface{}) (string, error) {
	v, ok := value.(decimal.Decimal)
	if !ok {
		return "", violation(ViolationValue, "%v is not a decimal", value)
	}
	if d.Scale > 0 {
		if v.Exponent() != -int32(d.Scale) {
			return "", violation(ViolationValue, "%s doesn't match scale=%d", v, d.Scale)
		}
		return v.StringFixed(int32(d.Scale)), nil
	}
	return v.String(), nil
}

// Fixed name->GMT offset table, for FIs that send datetimes formatted like
// 20170203040506.000[-:CST] with no parseable offset hours.
var tzOffsets = map[string]int{
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// parseGMTOffset resolves the bracketed offset annotation into a duration.
// hours is the raw offset-hours capture, which may be signed, empty, or (for
// noncompliant FIs) unparseable, in which case tzName is consulted.
func parseGMTOffset(hours, minutes, tzName string) (time.Duration, error) {
	if hours == "" {
		return 0, nil
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		off, ok := tzOffsets[tzName]
		if !ok {
			return 0, violation(ViolationValue, "can't parse timezone %q into a valid GMT offset", tzName)
		}
		h = off
	}
	if h < -12 || h > 14 {
		return 0, violation(ViolationValue, "GMT offset hours %d out of range", h)
	}
	m := 0
	if minutes != "" {
		if m, err = strconv.Atoi(minutes); err != nil {
			return 0, violation(ViolationValue, "%q is not a valid GMT offset minutes", minutes)
		}
	}
	total := 60*abs(h) + m
	if h < 0 {
		total = -total
	}
	return time.Duration(total) * time.Minute, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Datetime format per OFX section 3.2.8.2:
// YYYYMMDD[HHMMSS[.fff]][[gmt offset[:tz name]]]
// The HHMMSS[offset] form without milliseconds isn't valid per the spec, but
// JPMorgan sends it, so it is allowed.
var dtRegex = regexp.MustCompile(`^` +
	`(?P<year>[0-9]{4})` +
	`(?P<month>(0[1-9])|(1[0-2]))` +
	`(?P<day>(0[1-9])|([1-2][0-9])|(3[0-1]))` +
	`(` +
	`(?P<hour>([0-1][0-9])|(2[0-3]))` +
	`(?P<minute>[0-5][0-9])` +
	`(?P<second>([0-5][0-9])|(60))` +
	`(\.(?P<millisecond>[0-9]{3}))?` +
	`(\[(?P<gmtoffhours>[0-9+-]+)` +
	`(\.(?P<gmtoffminutes>\d\d))?` +
	`(:(?P<tzname>[^\]]*))?` +
	`\])?` +
	`)?$`)

// DateTime converts OFX datetimes, normalized to UTC. Unconvert always emits
// the offset+name form with millisecond precision, rounding microseconds and
// carrying across second/minute/hour/day boundaries as needed.
type DateTime struct{}

func (DateTime) Convert(text string) (interface{}, error) {
	match := dtRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, violation(ViolationValue, "%q does not conform to OFX datetime formats", text)
	}
	group := func(name string) string { return match[dtRegex.SubexpIndex(name)] }
	offset, err := parseGMTOffset(group("gmtoffhours"), group("gmtoffminutes"), group("tzname"))
	if err != nil {
		return nil, err
	}
	num := func(name string) int {
		n, _ := strconv.Atoi(group(name))
		return n
	}
	t := time.Date(num("year"), time.Month(num("month")), num("day"),
		num("hour"), num("minute"), num("second"), num("millisecond")*int(time.Millisecond),
		time.UTC)
	return t.Add(-offset), nil
}

func (DateTime) Unconvert(value interface{}) (string, error) {
	t, ok := value.(time.Time)
	if !ok {
		return "", violation(ViolationValue, "%v is not a time.Time", value)
	}
	u := t.UTC().Round(time.Millisecond)
	return fmt.Sprintf("%s.%03d[0:GMT]", u.Format("20060102150405"), u.Nanosecond()/int(time.Millisecond)), nil
}

// Time format per OFX section 3.2.8.3: HHMMSS[.fff][[gmt offset[:tz name]]].
var timeRegex = regexp.MustCompile(`^` +
	`(?P<hour>([0-1][0-9])|(2[0-3]))` +
	`(?P<minute>[0-5][0-9])` +
	`(?P<second>([0-5][0-9])|(60))` +
	`(\.(?P<millisecond>[0-9]{3}))?` +
	`(\[(?P<gmtoffhours>[0-9+-]+)` +
	`(\.(?P<gmtoffminutes>\d\d))?` +
	`(:(?P<tzname>[^\]]*))?` +
	`\])?` +
	`$`)

// timeRefDate pins converted Time values to a fixed date, since Go has no
// bare time-of-day type. Only the clock fields are meaningful.
var timeRefDate = time.Date(1999, time.June, 8, 0, 0, 0, 0, time.UTC)

// Time converts OFX time-of-day values, normalized to UTC on the fixed
// reference date 1999-06-08.
type Time struct{}

func (Time) Convert(text string) (interface{}, error) {
	match := timeRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, violation(ViolationValue, "%q does not conform to OFX time formats", text)
	}
	group := func(name string) string { return match[timeRegex.SubexpIndex(name)] }
	offset, err := parseGMTOffset(group("gmtoffhours"), group("gmtoffminutes"), group("tzname"))
	if err != nil {
		return nil, err
	}
	num := func(name string) int {
		n, _ := strconv.Atoi(group(name))
		return n
	}
	shifted := timeRefDate.Add(time.Duration(num("hour"))*time.Hour +
		time.Duration(num("minute"))*time.Minute +
		time.Duration(num("second"))*time.Second +
		time.Duration(num("millisecond"))*time.Millisecond -
		offset)
	// Re-pin to the reference date; the offset shift may have crossed
	// midnight and only the clock matters.
	return time.Date(1999, time.June, 8, shifted.Hour(), shifted.Minute(),
		shifted.Second(), shifted.Nanosecond(), time.UTC), nil
}

func (Time) Unconvert(value interface{}) (string, error) {
	t, ok := value.(time.Time)
	if !ok {
		return "", violation(ViolationValue, "%v is not a time.Time", value)
	}
	u := t.UTC().Round(time.Millisecond)
	return fmt.Sprintf("%s.%03d[0:GMT]", u.Format("150405"), u.Nanosecond()/int(time.Millisecond)), nil
}
