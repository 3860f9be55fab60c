package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	visaPattern       = regexp.MustCompile(`^4[0-9]{12}(?:[0-9]{3})?$`)
	mastercardPattern = regexp.MustCompile(`^5[1-5][0-9]{14}$`)
	cvcPattern        = regexp.MustCompile(`^[0-9]{3,4}$`)
	holderPattern     = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
)

type Brand string

const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandUnknown    Brand = "UNKNOWN"
)

// Card is raw card data. It is handed to the gateway for tokenization and
// never stored or logged; String masks it.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
	Holder   string
}

func (c Card) String() string {
	return fmt.Sprintf("%s ****%s", c.Brand(), c.Last4())
}

func (c Card) clean() string {
	return strings.Join(strings.Fields(c.Number), "")
}

func (c Card) Last4() string {
	n := c.clean()
	if len(n) < 4 {
		return ""
	}
	return n[len(n)-4:]
}

func (c Card) Brand() Brand {
	n := c.clean()
	switch {
	case visaPattern.MatchString(n):
		return BrandVisa
	case mastercardPattern.MatchString(n):
		return BrandMastercard
	default:
		return BrandUnknown
	}
}

// Normalized strips whitespace from the number and holder edges.
func (c Card) Normalized() Card {
	c.Number = c.clean()
	c.Holder = strings.TrimSpace(c.Holder)
	return c
}

// CardError lists every invalid field. It matches ErrInvalidCard.
type CardError struct {
	Fields map[string]string
}

func (e *CardError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid card: " + strings.Join(parts, "; ")
}

func (e *CardError) Unwrap() error { return ErrInvalidCard }

// Validate applies the storefront card rules as of now. The expiry year is two digits.
func (c Card) Validate(now time.Time) error {
	fields := map[string]string{}

	n := c.clean()
	switch {
	case !luhn(n):
		fields["number"] = "failed checksum"
	case c.Brand() == BrandUnknown:
		fields["number"] = "only Visa or Mastercard are accepted"
	}
	if !validExpiry(c.ExpMonth, c.ExpYear, now) {
		fields["expiry"] = "invalid or past expiry date"
	}
	if !cvcPattern.MatchString(c.CVC) {
		fields["cvc"] = "must be 3 or 4 digits"
	}
	if len(strings.TrimSpace(c.Holder)) < 3 || !holderPattern.MatchString(c.Holder) {
		fields["card_holder"] = "must be at least 3 letters"
	}

	if len(fields) > 0 {
		return &CardError{Fields: fields}
	}
	return nil
}

func luhn(n string) bool {
	if n == "" || !digitsPattern.MatchString(n) {
		return false
	}
	sum := 0
	double := false
	for i := len(n) - 1; i >= 0; i-- {
		d := int(n[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func validExpiry(month, year string, now time.Time) bool {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 2 {
		return false
	}
	curYear := now.Year() % 100
	curMonth := int(now.Month())
	if y < curYear {
		return false
	}
	return y != curYear || m >= curMonth
}
