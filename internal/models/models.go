package models

import "time"

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PassHash []byte `json:"-"`
}

// Message is embedded in its group's document; the slice order is the
// append order.
type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

type Group struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Members  []string  `json:"members"`
	Messages []Message `json:"messages"`
}

// IsMember reports whether email is in the group's member list.
func (g *Group) IsMember(email string) bool {
	for _, m := range g.Members {
		if m == email {
			return true
		}
	}
	return false
}
