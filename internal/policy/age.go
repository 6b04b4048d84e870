package policy

import "time"

// AgeAt returns the whole-year age of someone born on birth, measured at ref.
// The birthday counts from its calendar day, so the age increments exactly on
// the anniversary.
func AgeAt(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}
