package domain

import "time"

// User is a read-only projection of the identity collaborator's user
// record. The service never authenticates users; it only resolves names
// for history attribution and notifications.
type User struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}
