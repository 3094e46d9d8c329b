package services

import "github.com/devlink/apiserver/internal/apperr"

const notAuthorizedMessage = "User not authorized"

// authorize allows principalID to mutate a resource owned by ownerID.
// Callers must establish that the resource exists first, so a missing
// resource is reported as NotFound rather than Forbidden.
func authorize(principalID, ownerID string) error {
	if principalID == "" || principalID != ownerID {
		return apperr.Forbidden(notAuthorizedMessage)
	}
	return nil
}
