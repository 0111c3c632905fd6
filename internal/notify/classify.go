package notify

import "strings"

// LineKind is a bit set of lexical categories a trimmed dbus-monitor line
// belongs to. A line may carry several kinds; which one matters depends on
// the accumulator state.
type LineKind uint32

const (
	KindNone   LineKind = 0
	KindHeader LineKind = 1 << iota
	KindBoundary
	KindTypeDecl
	KindString
	KindUint32
	KindInt32
	KindBoolean
	KindArrayOpen
	KindOpen
	KindClose
	KindStructClose
	KindHexRow
	KindDictEntry
	KindImageMarker
	KindVariant
)

// Has reports whether all bits of want are set.
func (k LineKind) Has(want LineKind) bool {
	return want != 0 && k&want == want
}

var headerPrefixes = []string{"method call ", "signal ", "method return ", "error "}

var imageMarkers = []string{`"image-data"`, `"image_data"`, `"icon_data"`}

// Classify categorises one trimmed trace line using prefix and content tests
// only. Unrecognised lines return KindNone.
func Classify(line string) LineKind {
	if line == "" {
		return KindNone
	}

	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			kind := KindHeader
			if strings.Contains(line, "member=Notify") || strings.Contains(line, "member='Notify'") {
				kind |= KindBoundary
			}
			return kind
		}
	}

	var kind LineKind

	switch line {
	case "]":
		return KindClose
	case "}":
		return KindStructClose
	}

	value := line
	if rest, ok := cutToken(line, "variant"); ok {
		kind |= KindVariant
		value = rest
	} else if hasAnyPrefix(line, "string ", "uint32 ", "int32 ", "array [") {
		kind |= KindTypeDecl
	}

	switch {
	case strings.HasPrefix(value, `string "`):
		kind |= KindString
	case strings.HasPrefix(value, "uint32 "):
		kind |= KindUint32
	case strings.HasPrefix(value, "int32 "):
		kind |= KindInt32
	case strings.HasPrefix(value, "boolean "):
		kind |= KindBoolean
	case strings.HasPrefix(value, "array ["):
		kind |= KindArrayOpen
	}

	if strings.HasSuffix(line, "[") {
		kind |= KindOpen
	}
	if strings.Contains(line, "dict entry(") {
		kind |= KindDictEntry
	}
	for _, marker := range imageMarkers {
		if strings.Contains(line, marker) {
			kind |= KindImageMarker
			break
		}
	}
	if isHexRow(line) {
		kind |= KindHexRow
	}
	return kind
}

// scalarValue returns the token following the type name of a scalar line,
// skipping a leading variant token.
func scalarValue(line string) string {
	if rest, ok := cutToken(line, "variant"); ok {
		line = rest
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func cutToken(line, token string) (string, bool) {
	rest, ok := strings.CutPrefix(line, token)
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isHexRow(line string) bool {
	if len(line) <= 5 {
		return false
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F', c == ' ':
		default:
			return false
		}
	}
	return true
}
