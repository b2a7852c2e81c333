package chat

import "sync"

// RoomKey derives the channel key for a one-to-one conversation. The two ids
// are ordered before joining, so both participants compute the same key.
func RoomKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// GroupRoomKey prefixes group ids so they can never collide with a pairwise
// key.
func GroupRoomKey(chatID string) string {
	return "group_" + chatID
}

type room struct {
	mu      sync.Mutex
	members map[*Session]struct{}
	reaped  bool // set when removed from the registry; joiners must retry
}

// RoomRegistry maps room keys to the sessions currently joined. Purely
// in-memory: clients re-join after reconnect, so nothing here survives a
// restart. The registry lock only guards room creation and removal; each
// room's membership has its own lock so unrelated rooms never serialize.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*room)}
}

func (r *RoomRegistry) get(key string, create bool) *room {
	r.mu.RLock()
	rm, ok := r.rooms[key]
	r.mu.RUnlock()
	if ok || !create {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[key]; ok {
		return rm
	}
	rm = &room{members: make(map[*Session]struct{})}
	r.rooms[key] = rm
	return rm
}

// Join adds the session to the room's membership. Joining twice is a no-op.
func (r *RoomRegistry) Join(s *Session, key string) {
	for {
		rm := r.get(key, true)
		rm.mu.Lock()
		if rm.reaped {
			// Lost a race with Leave reaping the empty room; the next
			// lookup creates a fresh one.
			rm.mu.Unlock()
			continue
		}
		rm.members[s] = struct{}{}
		rm.mu.Unlock()
		break
	}

	s.trackRoom(key)
}

func (r *RoomRegistry) Leave(s *Session, key string) {
	rm := r.get(key, false)
	if rm == nil {
		return
	}
	s.untrackRoom(key)

	rm.mu.Lock()
	delete(rm.members, s)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		rm.mu.Lock()
		if len(rm.members) == 0 && !rm.reaped {
			rm.reaped = true
			delete(r.rooms, key)
		}
		rm.mu.Unlock()
		r.mu.Unlock()
	}
}

// MembersOf returns a snapshot of the room's sessions. Sessions may disconnect
// after the snapshot is taken; delivery to a closing connection is dropped,
// not an error.
func (r *RoomRegistry) MembersOf(key string) []*Session {
	rm := r.get(key, false)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	members := make([]*Session, 0, len(rm.members))
	for s := range rm.members {
		members = append(members, s)
	}
	return members
}

// keyedMutex serializes holders of the same key while leaving different keys
// independent. Entries are reference-counted and removed once the last holder
// or waiter releases, so the map never grows with dead keys.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyedMutexEntry)}
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	if e == nil {
		e = &keyedMutexEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// Broadcast enqueues data on every member of the room, optionally skipping one
// session. The room lock is held across the enqueue loop so every member sees
// broadcasts to the same room in the same order; enqueues never block, so the
// lock is held only briefly. Sessions whose queue is full are reported back
// for eviction.
func (r *RoomRegistry) Broadcast(key string, data []byte, except *Session) []*Session {
	rm := r.get(key, false)
	if rm == nil {
		return nil
	}

	var slow []*Session
	rm.mu.Lock()
	for s := range rm.members {
		if s == except {
			continue
		}
		if !s.enqueue(data) {
			slow = append(slow, s)
		}
	}
	rm.mu.Unlock()
	return slow
}
