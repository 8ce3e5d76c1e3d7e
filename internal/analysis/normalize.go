package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const unitAmount = `(\d[\d,]*(?:\.\d+)?)`

// kanjiAmount matches 億/万/千 amounts, including compound forms such as
// 1億2000万 and 1万2000, with an optional trailing 円. The whole token must
// match.
var kanjiAmount = regexp.MustCompile(`^([-+]?)[¥$€£]?\s*` +
	`(?:` + unitAmount + `\s*億)?\s*` +
	`(?:` + unitAmount + `\s*万)?\s*` +
	`(?:` + unitAmount + `\s*千)?\s*` +
	unitAmount + `?\s*円?\s*$`)

var kanjiFactors = []float64{1e8, 1e4, 1e3, 1}

// latinAmount matches a single k/K or m/M suffix ending the token.
var latinAmount = regexp.MustCompile(`^([-+]?)[¥$€£]?\s*` + unitAmount + `\s*([kKmM])\s*$`)

var (
	parenNegative = regexp.MustCompile(`^\((.*)\)$`)
	decimalToken  = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?$`)
	exponentPart  = regexp.MustCompile(`[eE][-+]?\d+$`)

	numberNoise = strings.NewReplacer(
		"¥", "", "$", "", "€", "", "£", "", "₩", "", "円", "",
		",", "", "、", "",
	)
	minusVariants = strings.NewReplacer(
		"−", "-", "‐", "-", "‑", "-", "‒", "-",
		"–", "-", "—", "-", "―", "-", "﹣", "-",
		"△", "-", "▲", "-",
	)
)

// Normalize converts a raw cell into a canonical number. Blank or
// unparseable input yields 0.
func Normalize(v any) float64 {
	f, _ := ParseNumber(v)
	return f
}

// ParseNumber is Normalize with a flag reporting whether the input actually
// parsed, so callers can tell a real zero from a degraded one.
func ParseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case string:
		return parseNumericText(x)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericText(s string) (float64, bool) {
	s = strings.TrimSpace(narrow(s))
	if s == "" {
		return 0, false
	}

	if f, ok, matched := parseUnitAmount(s); matched {
		if !ok {
			return 0, false
		}
		return finite(f)
	}

	if m := parenNegative.FindStringSubmatch(s); m != nil {
		s = "-" + m[1]
	}
	s = numberNoise.Replace(s)
	s = strings.Join(strings.Fields(s), "")
	s = minusVariants.Replace(s)

	// The exponent sign is not part of the minus run.
	mantissa, exponent := s, ""
	if loc := exponentPart.FindStringIndex(s); loc != nil {
		mantissa, exponent = s[:loc[0]], s[loc[0]:]
	}
	if n := strings.Count(mantissa, "-"); n > 1 {
		mantissa = strings.ReplaceAll(mantissa, "-", "")
		if n%2 == 1 {
			mantissa = "-" + mantissa
		}
	}
	s = mantissa + exponent
	if !decimalToken.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// parseUnitAmount handles tokens carrying 億/万/千 or k/M units. matched
// is false when s has no unit, so the caller falls through to plain
// decimal parsing.
func parseUnitAmount(s string) (f float64, ok, matched bool) {
	if m := kanjiAmount.FindStringSubmatch(s); m != nil && (m[2] != "" || m[3] != "" || m[4] != "") {
		for i, factor := range kanjiFactors {
			part := m[i+2]
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(part, ",", ""), 64)
			if err != nil {
				return 0, false, true
			}
			f += v * factor
		}
		if m[1] == "-" {
			f = -f
		}
		return f, true, true
	}
	if m := latinAmount.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			return 0, false, true
		}
		factor := 1e3
		if m[3] == "m" || m[3] == "M" {
			factor = 1e6
		}
		if m[1] == "-" {
			v = -v
		}
		return v * factor, true, true
	}
	return 0, false, false
}

// narrow maps full-width forms to their half-width equivalents.
func narrow(s string) string { return width.Narrow.String(s) }
