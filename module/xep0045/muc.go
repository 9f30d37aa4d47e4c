/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"context"
	"sync"

	"github.com/c-pro/geche"
	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/runqueue"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

const (
	mucNamespace     = "http://jabber.org/protocol/muc"
	mucNamespaceUser = "http://jabber.org/protocol/muc#user"

	mucNamespaceOwner = "http://jabber.org/protocol/muc#owner"
	mucNamespaceAdmin = "http://jabber.org/protocol/muc#admin"
)

// Muc represents the multi-user chat service. Live rooms are held in a
// concurrent registry; every stanza addressed to a room runs on that room's
// own serialized queue, so room state is never mutated from two goroutines.
type Muc struct {
	cfg    *Config
	router *router.Router

	rooms geche.Geche[string, *mucmodel.Room]

	mu     sync.Mutex
	queues map[string]*runqueue.RunQueue
}

// New returns an initialized MUC service. The service claims its own
// hostname on the router, so stanzas addressed to the conference domain
// reach it instead of the account router.
func New(cfg *Config, r *router.Router) *Muc {
	if len(cfg.MucHost) == 0 || r.IsLocalHost(cfg.MucHost) {
		log.Errorf("muc: service could not be started, invalid hostname")
		return nil
	}
	s := &Muc{
		cfg:    cfg,
		router: r,
		rooms:  geche.NewMapCache[string, *mucmodel.Room](),
		queues: make(map[string]*runqueue.RunQueue),
	}
	r.RegisterHost(cfg.MucHost)
	s.loadPersistentRooms()
	return s
}

// MatchesIQ tells whether an IQ is addressed to the conference service.
func (s *Muc) MatchesIQ(iq *xmpp.IQ) bool {
	return iq.ToJID().Domain() == s.cfg.MucHost
}

// ProcessIQ processes a MUC IQ on the target room's queue.
func (s *Muc) ProcessIQ(ctx context.Context, iq *xmpp.IQ) {
	s.roomQueue(iq.ToJID()).Post(func() {
		s.processIQ(ctx, iq)
	})
}

// ProcessPresence processes a MUC presence on the target room's queue.
func (s *Muc) ProcessPresence(ctx context.Context, presence *xmpp.Presence) {
	s.roomQueue(presence.ToJID()).Post(func() {
		s.processPresence(ctx, presence)
	})
}

// ProcessMessage processes a MUC message on the target room's queue.
func (s *Muc) ProcessMessage(ctx context.Context, message *xmpp.Message) {
	s.roomQueue(message.ToJID()).Post(func() {
		s.processMessage(ctx, message)
	})
}

// GetMucHostname returns the conference service hostname.
func (s *Muc) GetMucHostname() string {
	return s.cfg.MucHost
}

// GetDefaultRoomConfig returns a copy of the service room defaults.
func (s *Muc) GetDefaultRoomConfig() *mucmodel.RoomConfig {
	conf := s.cfg.RoomDefaults
	return &conf
}

// Shutdown waits until every pending room operation has run.
func (s *Muc) Shutdown() error {
	s.mu.Lock()
	queues := make([]*runqueue.RunQueue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		c := make(chan struct{})
		q.Post(func() { close(c) })
		<-c
	}
	return nil
}

func (s *Muc) processIQ(ctx context.Context, iq *xmpp.IQ) {
	room, err := s.getRoom(ctx, iq.ToJID())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, iq.InternalServerError())
		return
	}
	if room == nil {
		_ = s.router.Route(ctx, iq.ItemNotFoundError())
		return
	}
	query := iq.Elements().Child("query")
	if query == nil {
		_ = s.router.Route(ctx, iq.BadRequestError())
		return
	}
	switch query.Namespace() {
	case mucNamespaceOwner:
		s.processIQOwner(ctx, room, iq)
	case mucNamespaceAdmin:
		s.processIQAdmin(ctx, room, iq)
	default:
		_ = s.router.Route(ctx, iq.BadRequestError())
	}
}

func (s *Muc) processPresence(ctx context.Context, presence *xmpp.Presence) {
	room, err := s.getRoom(ctx, presence.ToJID())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, presence.InternalServerError())
		return
	}
	switch {
	case isPresenceToEnterRoom(presence):
		s.enterRoom(ctx, room, presence)
	case presence.IsUnavailable():
		s.exitRoom(ctx, room, presence)
	case isChangingStatus(presence):
		s.changeStatus(ctx, room, presence)
	default:
		s.changeNickname(ctx, room, presence)
	}
}

func (s *Muc) processMessage(ctx context.Context, message *xmpp.Message) {
	room, err := s.getRoom(ctx, message.ToJID())
	if err != nil {
		log.Error(err)
		_ = s.router.Route(ctx, message.InternalServerError())
		return
	}
	if room == nil {
		_ = s.router.Route(ctx, message.ItemNotFoundError())
		return
	}
	switch {
	case isInvite(message):
		s.inviteUser(ctx, room, message)
	case isDeclineInvitation(message):
		s.declineInvitation(ctx, room, message)
	case message.IsGroupChat() && message.Elements().Child("subject") != nil:
		s.changeSubject(ctx, room, message)
	case message.IsGroupChat():
		s.messageEveryone(ctx, room, message)
	case message.IsChat() || message.Type() == "":
		s.sendPM(ctx, room, message)
	default:
		_ = s.router.Route(ctx, message.BadRequestError())
	}
}

// getRoom resolves the room a stanza is addressed to, loading a persistent
// room from storage on first touch. A nil room with nil error means the room
// does not exist.
func (s *Muc) getRoom(ctx context.Context, to *jid.JID) (*mucmodel.Room, error) {
	roomJID := to.ToBareJID().String()
	if room, err := s.rooms.Get(roomJID); err == nil {
		return room, nil
	}
	room, err := storage.FetchRoom(ctx, to.Node())
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, nil
	}
	s.rooms.Set(roomJID, room)
	return room, nil
}

// saveRoom registers the room in the live registry and writes it back to
// storage when the room is persistent.
func (s *Muc) saveRoom(ctx context.Context, room *mucmodel.Room) error {
	s.rooms.Set(room.RoomJID.String(), room)
	if !room.Config.Persistent {
		return nil
	}
	return storage.UpsertRoom(ctx, room)
}

// dropRoom removes a room from the registry and from storage.
func (s *Muc) dropRoom(ctx context.Context, room *mucmodel.Room) error {
	_ = s.rooms.Del(room.RoomJID.String())
	if !room.Config.Persistent {
		return nil
	}
	return storage.DeleteRoom(ctx, room.Name)
}

func (s *Muc) roomQueue(to *jid.JID) *runqueue.RunQueue {
	roomJID := to.ToBareJID().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[roomJID]
	if q == nil {
		q = runqueue.New("muc:" + roomJID)
		s.queues[roomJID] = q
	}
	return q
}

func (s *Muc) loadPersistentRooms() {
	rooms, err := storage.FetchRooms(context.Background())
	if err != nil {
		log.Warnf("muc: could not load persistent rooms: %v", err)
		return
	}
	for _, room := range rooms {
		s.rooms.Set(room.RoomJID.String(), room)
	}
}
