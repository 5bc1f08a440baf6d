package agent

import (
	"github.com/google/uuid"

	"github.com/kastheco/mountie/secret"
)

// Request is an authentication request forwarded to the session.
type Request interface {
	RequestID() string
	// Drop cancels the request by dropping its responder.
	Drop()
}

// UserChoice is the answer to ChooseUser.
type UserChoice struct {
	Name  string
	Index int
}

// ChooseUser asks the session which of the candidate identities should
// authenticate.
type ChooseUser struct {
	ID        string
	Users     []string
	Responder *Responder[UserChoice]
}

// RequestPassword asks the session for the password of Name. The receiver of
// the answer owns the secret and must wipe it.
type RequestPassword struct {
	ID        string
	Name      string
	Responder *Responder[*secret.Secret]
}

func (r *ChooseUser) RequestID() string      { return r.ID }
func (r *RequestPassword) RequestID() string { return r.ID }

func (r *ChooseUser) Drop()      { r.Responder.Drop() }
func (r *RequestPassword) Drop() { r.Responder.Drop() }

func newChooseUser(users []string) *ChooseUser {
	return &ChooseUser{
		ID:        uuid.NewString(),
		Users:     append([]string(nil), users...),
		Responder: NewResponder[UserChoice](),
	}
}

func newRequestPassword(name string) *RequestPassword {
	return &RequestPassword{
		ID:        uuid.NewString(),
		Name:      name,
		Responder: NewResponder[*secret.Secret](),
	}
}

// Choose picks the identity that authenticates: preferred when it is one of
// the candidates, otherwise the first candidate. ok is false when there are
// no candidates.
func Choose(users []string, preferred string) (choice UserChoice, ok bool) {
	if len(users) == 0 {
		return UserChoice{}, false
	}
	if preferred != "" {
		for i, u := range users {
			if u == preferred {
				return UserChoice{Name: u, Index: i}, true
			}
		}
	}
	return UserChoice{Name: users[0], Index: 0}, true
}
