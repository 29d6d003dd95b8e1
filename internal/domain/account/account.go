package account

import "time"

// Account is the stored player identity. PasswordHash never crosses the
// API boundary; handlers only ever see a Summary.
type Account struct {
	ID           int64     `json:"id"`
	Handle       string    `json:"account"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Summary struct {
	ID     int64  `json:"account_id"`
	Handle string `json:"account"`
	Name   string `json:"name"`
}

func (a Account) Summary() Summary {
	return Summary{ID: a.ID, Handle: a.Handle, Name: a.Name}
}
