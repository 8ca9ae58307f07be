// Package model holds the user entity and the domain errors that
// cross the repository boundary.
//
// A user is either new (never persisted, no identity yet) or persisted
// (identity and version assigned by the store). Both shapes satisfy
// Saveable so the repository can branch on the type instead of on a
// sentinel identity value.
package model

// Attributes are the user fields a client owns.
type Attributes struct {
	Name               string `json:"name"`
	Age                int    `json:"age"`
	CountryOfResidence string `json:"countryOfResidence"`
}

// User is a persisted user.
//
// Version is owned by the store: it starts at 0 on insert and is
// incremented by every successful update.
type User struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
	Attributes
}

// NewUser is a user that has not been stored yet.
type NewUser struct {
	Attributes
}

// Saveable is implemented by NewUser and User only.
type Saveable interface {
	saveable()
}

func (NewUser) saveable() {}
func (User) saveable()    {}

// IsNew reports whether u has no store-assigned identity.
//
// Identities are generated starting at 1, so anything <= 0 has never
// been inserted.
func (u User) IsNew() bool {
	return u.ID <= 0
}

// AsSaveable turns a decoded user into the variant the repository
// expects: a NewUser when it has no identity, itself otherwise.
func (u User) AsSaveable() Saveable {
	if u.IsNew() {
		return NewUser{Attributes: u.Attributes}
	}
	return u
}

// Persisted builds the stored representation of a NewUser once the
// store has assigned its identity and initial version.
func (n NewUser) Persisted(id, version int64) User {
	return User{
		ID:         id,
		Version:    version,
		Attributes: n.Attributes,
	}
}
