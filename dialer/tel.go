package dialer

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidURI = errors.New("invalid tel uri")

const telScheme = "tel:"

// TelURI builds the dial URI for a caller identifier.
func TelURI(number string) string {
	return telScheme + number
}

// ParseTelURI returns the number part of a tel: URI, dropping any parameters.
func ParseTelURI(uri string) (string, error) {
	if len(uri) < len(telScheme) || !strings.EqualFold(uri[:len(telScheme)], telScheme) {
		return "", errors.Wrapf(ErrInvalidURI, "missing tel scheme in %q", uri)
	}
	number, _, _ := strings.Cut(uri[len(telScheme):], ";")
	if number == "" {
		return "", errors.Wrapf(ErrInvalidURI, "empty number in %q", uri)
	}
	return number, nil
}
