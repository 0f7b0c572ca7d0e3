package authstate

import (
	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

// FromSession builds the snapshot for a request-scoped user, so the server
// reports the same shape the observer publishes. A nil user yields the
// unauthenticated snapshot.
func FromSession(u *auth.SessionUser) Snapshot {
	if u == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		User: &identity.User{
			UID:         u.UID,
			Email:       u.Email,
			DisplayName: u.Name,
		},
		Profile: u.Profile,
	}
	if u.Profile != nil {
		snap.User.PhotoURL = u.Profile.PhotoURL
	}
	if u.ProfileLoadFailed {
		snap.Error = ProfileLoadError
	}
	return snap
}
