package profile

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// labelSeparator is the ASCII unit separator, which never appears in a
// spreadsheet label.
const labelSeparator = "\x1f"

// Fingerprint returns a reversible token identifying a header set. It is
// independent of label order and sensitive to exact label text, including
// case and surrounding whitespace.
func Fingerprint(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(sorted, labelSeparator)))
}

// DecodeFingerprint returns the sorted labels a fingerprint was built from.
func DecodeFingerprint(fp string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(fp)
	if err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return strings.Split(string(raw), labelSeparator), nil
}
