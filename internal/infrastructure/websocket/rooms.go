package websocket

import (
	"sync"
)

type memberSet map[string]struct{}

// RoomDirectory maps room ids to connection ids and back.
// A room with no members is not stored.
type RoomDirectory struct {
	rooms  map[string]memberSet // roomID -> connectionIDs
	byConn map[string]memberSet // connectionID -> roomIDs
	mutex  sync.RWMutex
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms:  make(map[string]memberSet),
		byConn: make(map[string]memberSet),
	}
}

// Join adds connectionID to roomID. Joining twice is the same as joining once.
func (d *RoomDirectory) Join(roomID, connectionID string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.rooms[roomID] == nil {
		d.rooms[roomID] = make(memberSet)
	}
	d.rooms[roomID][connectionID] = struct{}{}

	if d.byConn[connectionID] == nil {
		d.byConn[connectionID] = make(memberSet)
	}
	d.byConn[connectionID][roomID] = struct{}{}
}

// Leave removes connectionID from roomID. Leaving a room one is not in is a no-op.
func (d *RoomDirectory) Leave(roomID, connectionID string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.leaveLocked(roomID, connectionID)
}

// LeaveAll removes connectionID from every room and returns the rooms it left.
func (d *RoomDirectory) LeaveAll(connectionID string) []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	rooms := keys(d.byConn[connectionID])
	for _, roomID := range rooms {
		d.leaveLocked(roomID, connectionID)
	}
	return rooms
}

func (d *RoomDirectory) leaveLocked(roomID, connectionID string) {
	if members, exists := d.rooms[roomID]; exists {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(d.rooms, roomID)
		}
	}

	if rooms, exists := d.byConn[connectionID]; exists {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(d.byConn, connectionID)
		}
	}
}

// Members returns a copy of the room's member ids.
func (d *RoomDirectory) Members(roomID string) []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return keys(d.rooms[roomID])
}

// RoomsOf returns a copy of the rooms connectionID belongs to.
func (d *RoomDirectory) RoomsOf(connectionID string) []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return keys(d.byConn[connectionID])
}

func (d *RoomDirectory) isMember(roomID, connectionID string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, ok := d.rooms[roomID][connectionID]
	return ok
}

// Counts returns the member count of every non-empty room.
func (d *RoomDirectory) Counts() map[string]int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	counts := make(map[string]int, len(d.rooms))
	for roomID, members := range d.rooms {
		counts[roomID] = len(members)
	}
	return counts
}

func keys(set memberSet) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
