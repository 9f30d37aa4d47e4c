/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import "errors"

// Policy violation errors returned by room operations. They are expected and
// frequent, and are mapped to stanza error conditions by the protocol layer.
var (
	// ErrConflict is returned when a nickname is taken by a different user or
	// when an affiliation change would remove the last room owner.
	ErrConflict = errors.New("mucmodel: conflict")

	// ErrForbidden is returned when an outcast attempts to enter a room.
	ErrForbidden = errors.New("mucmodel: forbidden")

	// ErrNotAllowed is returned when an operation is outside the
	// requester's privileges or would exceed the occupant limit.
	ErrNotAllowed = errors.New("mucmodel: not allowed")

	// ErrNotAuthorized is returned when the supplied room password is wrong.
	ErrNotAuthorized = errors.New("mucmodel: not authorized")

	// ErrRegistrationRequired is returned when a non-member attempts to
	// enter a members-only room.
	ErrRegistrationRequired = errors.New("mucmodel: registration required")

	// ErrRoomLocked is returned when entering a room still pending its
	// owner's initial configuration.
	ErrRoomLocked = errors.New("mucmodel: room locked")

	// ErrNotFound is returned when a nickname or user is not present in the room.
	ErrNotFound = errors.New("mucmodel: not found")
)
