/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"errors"
	"sync"

	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/stream"
	"github.com/conclave-im/conclave/xmpp"
	"github.com/conclave-im/conclave/xmpp/jid"
)

const defaultDomain = "localhost"

var (
	// ErrNotExistingAccount will be returned by Route method
	// if destination user does not exist.
	ErrNotExistingAccount = errors.New("router: account does not exist")

	// ErrResourceNotFound will be returned by Route method
	// if destination resource does not match any of user's available resources.
	ErrResourceNotFound = errors.New("router: resource not found")

	// ErrNotAuthenticated will be returned by Route method if
	// destination user is not available at this moment.
	ErrNotAuthenticated = errors.New("router: user not authenticated")

	// ErrBlockedJID will be returned by Route method if
	// destination jid matches any of the user's blocked jid.
	ErrBlockedJID = errors.New("router: destination jid is blocked")

	// ErrNotLocalHost will be returned by Route method if
	// destination domain does not match any of the local server domains.
	ErrNotLocalHost = errors.New("router: destination host is not local")
)

// Router represents an XMPP stanza router.
type Router struct {
	mu      sync.RWMutex
	hosts   map[string]bool
	streams map[string][]stream.C2S

	blockListsMu sync.RWMutex
	blockLists   map[string][]*jid.JID
}

// New returns an new empty router instance.
func New(config *Config) (*Router, error) {
	r := &Router{
		hosts:      make(map[string]bool),
		streams:    make(map[string][]stream.C2S),
		blockLists: make(map[string][]*jid.JID),
	}
	if len(config.Hosts) > 0 {
		for _, h := range config.Hosts {
			r.hosts[h] = true
		}
	} else {
		r.hosts[defaultDomain] = true
	}
	return r, nil
}

// HostNames returns the list of all configured host names.
func (r *Router) HostNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []string
	for n := range r.hosts {
		ret = append(ret, n)
	}
	return ret
}

// DefaultHostName returns the first configured host name.
func (r *Router) DefaultHostName() string {
	names := r.HostNames()
	if len(names) == 0 {
		return defaultDomain
	}
	ret := names[0]
	for _, n := range names[1:] {
		if n < ret {
			ret = n
		}
	}
	return ret
}

// IsLocalHost returns true if domain is a local server domain.
func (r *Router) IsLocalHost(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hosts[domain]
}

// RegisterHost adds a new local server domain at runtime.
func (r *Router) RegisterHost(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[domain] = true
}

// Bind marks a c2s stream as binded.
func (r *Router) Bind(stm stream.C2S) {
	if len(stm.Resource()) == 0 {
		return
	}
	r.mu.Lock()
	r.bind(stm)
	r.mu.Unlock()

	log.Infof("binded c2s stream... (%s/%s)", stm.Username(), stm.Resource())
}

// Unbind unbinds a previously binded c2s stream.
func (r *Router) Unbind(stmJID *jid.JID) {
	if len(stmJID.Resource()) == 0 {
		return
	}
	r.mu.Lock()
	if found := r.unbind(stmJID); !found {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	log.Infof("unbinded c2s stream... (%s/%s)", stmJID.Node(), stmJID.Resource())
}

// UserStreams returns all streams associated to a user.
func (r *Router) UserStreams(username string) []stream.C2S {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[username]
}

// IsBlockedJID returns whether or not the passed jid matches any of a user's blocking list jid.
func (r *Router) IsBlockedJID(ctx context.Context, jid *jid.JID, username string) bool {
	bl := r.getBlockList(ctx, username)
	for _, blkJID := range bl {
		if r.jidMatchesBlockedJID(jid, blkJID) {
			return true
		}
	}
	return false
}

// ReloadBlockList reloads in memory block list for a given user and starts
// applying it for future stanza routing.
func (r *Router) ReloadBlockList(username string) {
	r.blockListsMu.Lock()
	defer r.blockListsMu.Unlock()

	delete(r.blockLists, username)
	log.Infof("block list reloaded... (username: %s)", username)
}

// Route routes a stanza applying server rules for handling XML stanzas.
// (https://xmpp.org/rfcs/rfc3921.html#rules)
func (r *Router) Route(ctx context.Context, stanza xmpp.Stanza) error {
	return r.route(ctx, stanza, false)
}

// MustRoute routes a stanza applying server rules for handling XML stanzas
// ignoring blocking lists.
func (r *Router) MustRoute(ctx context.Context, stanza xmpp.Stanza) error {
	return r.route(ctx, stanza, true)
}

func (r *Router) jidMatchesBlockedJID(j, blockedJID *jid.JID) bool {
	if blockedJID.IsFullWithUser() {
		return j.Matches(blockedJID, jid.MatchesNode|jid.MatchesDomain|jid.MatchesResource)
	} else if blockedJID.IsFullWithServer() {
		return j.Matches(blockedJID, jid.MatchesDomain|jid.MatchesResource)
	} else if blockedJID.IsBare() {
		return j.Matches(blockedJID, jid.MatchesNode|jid.MatchesDomain)
	}
	return j.Matches(blockedJID, jid.MatchesDomain)
}

func (r *Router) getBlockList(ctx context.Context, username string) []*jid.JID {
	r.blockListsMu.RLock()
	bl := r.blockLists[username]
	r.blockListsMu.RUnlock()
	if bl != nil {
		return bl
	}
	blItems, err := storage.FetchBlockListItems(ctx, username)
	if err != nil {
		log.Error(err)
		return nil
	}
	bl = []*jid.JID{}
	for _, blItem := range blItems {
		j, _ := jid.NewWithString(blItem.JID, true)
		bl = append(bl, j)
	}
	r.blockListsMu.Lock()
	r.blockLists[username] = bl
	r.blockListsMu.Unlock()
	return bl
}

func (r *Router) bind(stm stream.C2S) {
	if usrStreams := r.streams[stm.Username()]; usrStreams != nil {
		res := stm.Resource()
		for _, usrStream := range usrStreams {
			if usrStream.Resource() == res {
				return // already binded
			}
		}
		r.streams[stm.Username()] = append(usrStreams, stm)
	} else {
		r.streams[stm.Username()] = []stream.C2S{stm}
	}
}

func (r *Router) unbind(jid *jid.JID) bool {
	found := false
	if usrStreams := r.streams[jid.Node()]; usrStreams != nil {
		res := jid.Resource()
		for i := 0; i < len(usrStreams); i++ {
			if res == usrStreams[i].Resource() {
				usrStreams = append(usrStreams[:i], usrStreams[i+1:]...)
				if len(usrStreams) > 0 {
					r.streams[jid.Node()] = usrStreams
				} else {
					delete(r.streams, jid.Node())
				}
				found = true
				break
			}
		}
	}
	return found
}

func (r *Router) route(ctx context.Context, element xmpp.Stanza, ignoreBlocking bool) error {
	toJID := element.ToJID()
	if !ignoreBlocking && !toJID.IsServer() {
		if r.IsBlockedJID(ctx, element.FromJID(), toJID.Node()) {
			return ErrBlockedJID
		}
	}
	if !r.IsLocalHost(toJID.Domain()) {
		return ErrNotLocalHost
	}
	rcps := r.UserStreams(toJID.Node())
	if len(rcps) == 0 {
		exists, err := storage.UserExists(ctx, toJID.Node())
		if err != nil {
			return err
		}
		if exists {
			return ErrNotAuthenticated
		}
		return ErrNotExistingAccount
	}
	if toJID.IsFullWithUser() {
		for _, stm := range rcps {
			if stm.Resource() == toJID.Resource() {
				stm.SendElement(ctx, element)
				return nil
			}
		}
		return ErrResourceNotFound
	}
	switch element.(type) {
	case *xmpp.Message:
		// send to highest priority stream
		stm := rcps[0]
		var highestPriority int8
		if p := stm.Presence(); p != nil {
			highestPriority = p.Priority()
		}
		for i := 1; i < len(rcps); i++ {
			rcp := rcps[i]
			if p := rcp.Presence(); p != nil && p.Priority() > highestPriority {
				stm = rcp
				highestPriority = p.Priority()
			}
		}
		stm.SendElement(ctx, element)

	default:
		// broadcast to all streams
		for _, stm := range rcps {
			stm.SendElement(ctx, element)
		}
	}
	return nil
}
