package identifier

// luhnCheckDigit returns the digit that makes number+digit pass Validate.
// number must contain only ASCII digits.
func luhnCheckDigit(number string) int {
	sum := 0
	double := true
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// Validate reports whether iccid is 20 digits with a correct Luhn check digit.
func Validate(iccid string) bool {
	if len(iccid) != iccidLength {
		return false
	}
	sum := 0
	double := false
	for i := len(iccid) - 1; i >= 0; i-- {
		c := iccid[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
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
