// Package phone normalizes raw phone strings into canonical forms.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed when the raw input carries no country code.
const DefaultRegion = "US"

// ErrInvalid is returned for inputs that do not parse as a valid
// phone number. Callers should treat the phone as absent, not fail.
var ErrInvalid = errors.New("phone: invalid number")

// Number is a successfully parsed phone number. Both canonical forms
// are exposed because the WhatConverts lookup wants E.164 while other
// consumers take bare national digits.
type Number struct {
	// E164 is the full international form, e.g. "+19105551234".
	E164 string
	// National is the national significant number, e.g. "9105551234".
	National string
}

// Normalize parses raw assuming the US region and returns its
// canonical forms. Unparsable or invalid numbers yield ErrInvalid.
func Normalize(raw string) (Number, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Number{}, ErrInvalid
	}

	parsed, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return Number{}, ErrInvalid
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return Number{}, ErrInvalid
	}

	return Number{
		E164:     phonenumbers.Format(parsed, phonenumbers.E164),
		National: phonenumbers.GetNationalSignificantNumber(parsed),
	}, nil
}
