package lifecycle

import (
	"strconv"
	"unicode/utf16"
)

// DeriveID returns a stable client-side identifier for an inbox item that has
// no server-assigned response id yet. It is the classic 32-bit rolling hash
// (h = h*31 + codeUnit) over the UTF-16 code units of subject+sender, taken
// as an absolute value and formatted as a decimal string.
//
// Two items with identical subject and sender share an id. That is accepted:
// the derived id only correlates per-item UI actions until the backend
// assigns a durable response id.
func DeriveID(subject, sender string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(subject + sender)) {
		h = h*31 + int32(u)
	}
	// int64 so the abs of math.MinInt32 doesn't overflow.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 10)
}

// noReplyIntents are the classification labels for which generating a reply
// is never offered.
var noReplyIntents = []string{
	"Marketing emails or newsletters",
	"Informational only – no action required (FYI)",
	"Announcing a new product or feature",
	"Shipping, delivery, or order tracking update",
}

// CanReply reports whether the given intent label admits a generated reply.
func CanReply(intent string) bool {
	for _, v := range noReplyIntents {
		if v == intent {
			return false
		}
	}
	return true
}
