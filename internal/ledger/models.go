package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User is the registry record stored at usuarios/{id}
type User struct {
	Name   string    `json:"nome"`
	SeenAt time.Time `json:"data"`
}

// Invitation is one entry of the sequence stored at convites/{referrer}
type Invitation struct {
	InviteeID int64     `json:"convidado"`
	At        time.Time `json:"data"`
}

// Balance is the two-currency balance stored at saldos/{id}.
// KZ is kept at 1000x USD by construction.
type Balance struct {
	USD decimal.Decimal `json:"usd"`
	KZ  int64           `json:"kz"`
}

// Positive reports whether there is anything to withdraw
func (b Balance) Positive() bool {
	return b.USD.IsPositive() || b.KZ > 0
}

// MarshalJSON writes usd as a JSON number so the record reads {usd, kz}.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		USD json.Number `json:"usd"`
		KZ  int64       `json:"kz"`
	}{
		USD: json.Number(b.USD.String()),
		KZ:  b.KZ,
	})
}

// BalanceEntry pairs a balance with the key it is stored under
type BalanceEntry struct {
	UserID  string
	Balance Balance
}

// PayoutRequest records a processed withdrawal for manual settlement,
// stored at saques/{user}/{id}
type PayoutRequest struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"usuario"`
	Destination string          `json:"destino"`
	Kind        DestinationKind `json:"tipo"`
	ChecksumOK  bool            `json:"checksum_ok"`
	USD         json.Number     `json:"usd"`
	KZ          int64           `json:"kz"`
	At          time.Time       `json:"data"`
}
