package stdio

import (
	"os/user"
)

// UserProvider resolves the user id recorded on the stdio session. The stdio
// transport carries no credentials, so the peer is whoever launched the
// process.
type UserProvider interface {
	CurrentUserID() (string, error)
}

// OSUserProvider resolves the user ID using the operating system's current user.
// The returned ID is user.Username when available; falling back to user.Uid.
type OSUserProvider struct{}

func (OSUserProvider) CurrentUserID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	if u.Username != "" {
		return u.Username, nil
	}
	return u.Uid, nil
}

// StaticUser is a UserProvider that always returns itself.
type StaticUser string

func (s StaticUser) CurrentUserID() (string, error) { return string(s), nil }
