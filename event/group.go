/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package event

const (
	// GroupUserAdded event is posted whenever a user joins a shared group.
	GroupUserAdded = "group.user.added"

	// GroupUserDeleted event is posted whenever a user leaves a shared group.
	GroupUserDeleted = "group.user.deleted"

	// GroupRenamed event is posted whenever a shared group display name changes.
	GroupRenamed = "group.renamed"

	// GroupVisibilityChanged event is posted whenever a shared group
	// visibility policy changes.
	GroupVisibilityChanged = "group.visibility.changed"
)

// GroupEventInfo contains all information associated to a shared group event.
type GroupEventInfo struct {
	// GroupName is the name of the affected group.
	GroupName string

	// Username is the bare JID of the affected member, when the event
	// concerns a single member.
	Username string

	// PrevName holds the previous roster name on a rename event.
	PrevName string
}
