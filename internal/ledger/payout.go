package ledger

import (
	"bytes"
	"crypto/sha256"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/tonkeeper/tongo/ton"
)

// DestinationKind names the kind of payout destination a message carries
type DestinationKind string

const (
	DestinationPhone DestinationKind = "phone"
	DestinationTRON  DestinationKind = "tron"
	DestinationTON   DestinationKind = "ton"
)

var (
	phoneRegex = regexp.MustCompile(`^\+?\d{7,15}$`)
	tronRegex  = regexp.MustCompile(`^T[a-zA-Z0-9]{33}$`)
)

const tronAddressPrefix = 0x41

// Destination is a payout instruction recognized in free text
type Destination struct {
	Raw        string
	Normalized string
	Kind       DestinationKind
	// ChecksumOK is informational for the operator; it never blocks a payout
	ChecksumOK bool
}

// Recognizer decides whether a free-text message is a payout instruction
type Recognizer struct {
	AcceptTON bool
}

// Classify returns the destination carried by text, if any. Phone numbers
// (+ and 7 to 15 digits) and TRON addresses (T and 33 alphanumerics) are
// always accepted; TON wallet addresses only with AcceptTON.
func (r Recognizer) Classify(text string) (Destination, bool) {
	text = strings.TrimSpace(text)

	switch {
	case phoneRegex.MatchString(text):
		return Destination{Raw: text, Normalized: text, Kind: DestinationPhone, ChecksumOK: true}, true
	case tronRegex.MatchString(text):
		return Destination{Raw: text, Normalized: text, Kind: DestinationTRON, ChecksumOK: validTRONChecksum(text)}, true
	case r.AcceptTON:
		acc, err := ton.ParseAccountID(text)
		if err != nil {
			return Destination{}, false
		}
		return Destination{Raw: text, Normalized: acc.String(), Kind: DestinationTON, ChecksumOK: true}, true
	}

	return Destination{}, false
}

// validTRONChecksum checks the base58check encoding of a TRON address:
// 0x41, 20 address bytes, then the first 4 bytes of a double SHA-256.
func validTRONChecksum(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 25 || raw[0] != tronAddressPrefix {
		return false
	}

	first := sha256.Sum256(raw[:21])
	second := sha256.Sum256(first[:])
	return bytes.Equal(second[:4], raw[21:])
}
