package domain

import (
	"fmt"
	"strings"
)

// BloodType is one of the eight ABO/Rh combinations, e.g. "O-".
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// BloodTypes lists every valid type in a stable order.
var BloodTypes = []BloodType{BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg}

// ParseBloodType normalises case and whitespace ("ab+" -> "AB+").
func ParseBloodType(s string) (BloodType, error) {
	bt := BloodType(strings.ToUpper(strings.TrimSpace(s)))
	if !bt.Valid() {
		return "", fmt.Errorf("invalid blood type %q: %w", s, ErrBadRequest)
	}
	return bt, nil
}

func (b BloodType) Valid() bool {
	for _, t := range BloodTypes {
		if b == t {
			return true
		}
	}
	return false
}

// CompatibilityMode selects the donor/recipient rule the matcher applies.
type CompatibilityMode string

const (
	// CompatExact only pairs identical types.
	CompatExact CompatibilityMode = "exact"
	// CompatUniversal is CompatExact plus O- donating to every type.
	CompatUniversal CompatibilityMode = "universal"
	// CompatABO applies the full ABO/Rh donor table.
	CompatABO CompatibilityMode = "abo"
)

func ParseCompatibilityMode(s string) (CompatibilityMode, error) {
	switch m := CompatibilityMode(strings.ToLower(strings.TrimSpace(s))); m {
	case CompatExact, CompatUniversal, CompatABO:
		return m, nil
	default:
		return "", fmt.Errorf("invalid compatibility mode %q: %w", s, ErrBadRequest)
	}
}

// donorCanGiveTo maps a donor type to the recipient types it can serve.
var donorCanGiveTo = map[BloodType][]BloodType{
	BloodONeg:  {BloodONeg, BloodOPos, BloodANeg, BloodAPos, BloodBNeg, BloodBPos, BloodABNeg, BloodABPos},
	BloodOPos:  {BloodOPos, BloodAPos, BloodBPos, BloodABPos},
	BloodANeg:  {BloodANeg, BloodAPos, BloodABNeg, BloodABPos},
	BloodAPos:  {BloodAPos, BloodABPos},
	BloodBNeg:  {BloodBNeg, BloodBPos, BloodABNeg, BloodABPos},
	BloodBPos:  {BloodBPos, BloodABPos},
	BloodABNeg: {BloodABNeg, BloodABPos},
	BloodABPos: {BloodABPos},
}

// CanDonate reports whether a donor of type donor may give to a recipient of type recipient.
func CanDonate(donor, recipient BloodType, mode CompatibilityMode) bool {
	if !donor.Valid() || !recipient.Valid() {
		return false
	}
	switch mode {
	case CompatUniversal:
		return donor == recipient || donor == BloodONeg
	case CompatABO:
		for _, t := range donorCanGiveTo[donor] {
			if t == recipient {
				return true
			}
		}
		return false
	default:
		return donor == recipient
	}
}

// DonorTypesFor returns every donor type that can serve recipient, in BloodTypes order.
func DonorTypesFor(recipient BloodType, mode CompatibilityMode) []BloodType {
	var out []BloodType
	for _, t := range BloodTypes {
		if CanDonate(t, recipient, mode) {
			out = append(out, t)
		}
	}
	return out
}
