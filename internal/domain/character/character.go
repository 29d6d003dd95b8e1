package character

import "time"

// Stats assigned to every freshly created character.
const (
	DefaultHealth = 400
	DefaultPower  = 100
	DefaultMoney  = 10000
)

type Character struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	Health    int       `json:"health"`
	Power     int       `json:"power"`
	Money     int64     `json:"money"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedBy is the single ownership predicate used by every operation that
// needs an authorization decision. Zero is never a valid account id.
func (c Character) OwnedBy(accountID int64) bool {
	return accountID != 0 && c.AccountID == accountID
}

// View is what callers receive. Money is owner-only and omitted from the
// public variant.
type View struct {
	Name   string `json:"name"`
	Health int    `json:"health"`
	Power  int    `json:"power"`
	Money  *int64 `json:"money,omitempty"`
}

func (c Character) ViewFor(callerAccountID int64) View {
	v := View{Name: c.Name, Health: c.Health, Power: c.Power}
	if c.OwnedBy(callerAccountID) {
		money := c.Money
		v.Money = &money
	}
	return v
}
