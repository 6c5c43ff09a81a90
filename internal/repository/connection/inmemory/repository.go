package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/review/internal/repository/connection"
)

type entry struct {
	member connection.Member
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
	active  bool
	pending []any
}

type repo struct {
	connList map[connection.Conn]*entry
	rooms    map[string]map[connection.Conn]struct{}
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[connection.Conn]*entry),
		rooms:    make(map[string]map[connection.Conn]struct{}),
	}
}

func (r *repo) Add(conn connection.Conn, member connection.Member) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "member_id", member.MemberID, "asset_id", member.AssetID)
	if _, ok := r.connList[conn]; ok {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = &entry{member: member}
	room, ok := r.rooms[member.AssetID]
	if !ok {
		room = make(map[connection.Conn]struct{})
		r.rooms[member.AssetID] = room
	}
	room[conn] = struct{}{}

	slog.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) RemoveByConn(conn connection.Conn) (connection.Member, error) {
	funcName := "connection.inmemory.RemoveByConn"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName)
	e, ok := r.connList[conn]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return connection.Member{}, connection.ErrNotFound
	}
	conn.Close()

	delete(r.connList, conn)
	if room, ok := r.rooms[e.member.AssetID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(r.rooms, e.member.AssetID)
		}
	}

	slog.Debug(funcName, "result", e.member.MemberID)
	return e.member, nil
}

func (r *repo) GetMember(conn connection.Conn) (connection.Member, error) {
	funcName := "connection.inmemory.GetMember"
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.connList[conn]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return connection.Member{}, connection.ErrNotFound
	}

	return e.member, nil
}

// RoomConns lists the connections joined to assetID, leaving out except.
func (r *repo) RoomConns(assetID string, except connection.Conn) []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[assetID]
	out := make([]connection.Conn, 0, len(room))
	for c := range room {
		if c == except {
			continue
		}
		out = append(out, c)
	}

	return out
}

// Write sends v to conn. Until the connection is activated, v is held back
// and sent by Activate.
func (r *repo) Write(conn connection.Conn, v any) error {
	e, err := r.getEntry(conn)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if !e.active {
		e.pending = append(e.pending, v)
		return nil
	}
	return conn.WriteJSON(v)
}

// Activate writes first, then everything held back since Add, and lets
// later writes through directly.
func (r *repo) Activate(conn connection.Conn, first any) error {
	funcName := "connection.inmemory.Activate"
	e, err := r.getEntry(conn)
	if err != nil {
		slog.Info(funcName, "error", err)
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.active {
		return connection.ErrAlreadyActive
	}

	if err := conn.WriteJSON(first); err != nil {
		return err
	}
	for _, v := range e.pending {
		if err := conn.WriteJSON(v); err != nil {
			return err
		}
	}
	slog.Debug(funcName, "member_id", e.member.MemberID, "flushed", len(e.pending))
	e.pending = nil
	e.active = true

	return nil
}

func (r *repo) getEntry(conn connection.Conn) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.connList[conn]
	if !ok {
		return nil, connection.ErrNotFound
	}
	return e, nil
}
