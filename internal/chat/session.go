package chat

// Session is the state of one live connection. RoomID 0 means the session is not viewing a room.
// It is held by value; the transport only carries ID.
type Session struct {
	ID     string
	UserID int64
	RoomID int64
}
