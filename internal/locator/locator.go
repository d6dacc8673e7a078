// Package locator encodes the public, shareable pointer to a message. A
// locator carries exactly the message id and the content address, nothing
// that could stand in for the physical tag.
package locator

import (
	"fmt"
	"net/url"

	"github.com/whispertag/whispertag/internal/common"
)

// Locator is the shareable address of a message. Safe to write to a tag or
// publish; decrypting still requires out-of-band possession of the tag.
type Locator struct {
	MessageID      string
	ContentAddress string
}

// allowedKeys is the closed set of fragment keys. Earlier layouts of this
// format leaked a serial-like field here; any unknown key is now a hard
// rejection, not something to skip over.
var allowedKeys = map[string]struct{}{
	"v":    {},
	"id":   {},
	"addr": {},
}

// Encode renders l in the fragment form "v=1&id=<messageID>&addr=<address>".
func (l Locator) Encode() string {
	v := url.Values{}
	v.Set("v", "1")
	v.Set("id", l.MessageID)
	v.Set("addr", l.ContentAddress)
	return v.Encode()
}

// Equal reports whether two locators point at the same message.
func (l Locator) Equal(other Locator) bool {
	return l.MessageID == other.MessageID && l.ContentAddress == other.ContentAddress
}

// Decode parses and validates an incoming fragment. It fails when the
// fragment is unparsable, when id or addr is absent, or when the fragment
// carries any key outside the allowed set.
func Decode(fragment string) (Locator, error) {
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: locator: %v", common.ErrMalformedPackage, err)
	}

	for key := range values {
		if _, ok := allowedKeys[key]; !ok {
			return Locator{}, fmt.Errorf("%w: locator carries unexpected field %q", common.ErrMalformedPackage, key)
		}
	}

	l := Locator{
		MessageID:      values.Get("id"),
		ContentAddress: values.Get("addr"),
	}
	if l.MessageID == "" || l.ContentAddress == "" {
		return Locator{}, fmt.Errorf("%w: locator missing id or addr", common.ErrMalformedPackage)
	}
	return l, nil
}
