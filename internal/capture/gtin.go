package capture

import "regexp"

var digitRun = regexp.MustCompile(`[0-9]+`)

// ValidGTIN checks the mod-10 check digit of an EAN-8, UPC-A or EAN-13 code
func ValidGTIN(code string) bool {
	switch len(code) {
	case 8, 12, 13:
	default:
		return false
	}

	sum := 0
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		d := code[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * weight
		weight = 4 - weight
	}
	check := code[len(code)-1]
	if check < '0' || check > '9' {
		return false
	}
	return (10-sum%10)%10 == int(check-'0')
}

// GTINFormat names the symbology implied by the code length
func GTINFormat(code string) string {
	switch len(code) {
	case 8:
		return "ean_8"
	case 12:
		return "upc_a"
	case 13:
		return "ean_13"
	default:
		return "unknown"
	}
}

// FindGTINs returns every checksum-valid code in text, in order
func FindGTINs(text string) []string {
	var out []string
	for _, run := range digitRun.FindAllString(text, -1) {
		if ValidGTIN(run) {
			out = append(out, run)
		}
	}
	return out
}
