package models

// RoomSnapshot is the read-only view served by the room info endpoint.
type RoomSnapshot struct {
	Room        string        `json:"room"`
	MemberCount int           `json:"memberCount"`
	Members     []RosterEntry `json:"members"`
	HistoryLen  int           `json:"historyLen"`
}
