// Package observability carries the point-in-time stats the health
// monitoring worker samples and logs.
package observability

// Stats aggregates live coordinator figures across the whole process.
type Stats struct {
	Rooms               int   `json:"rooms"`
	RoomConnections     int64 `json:"room_connections"`
	PresenceConnections int64 `json:"presence_connections"`
	KnownUsers          int64 `json:"known_users"`
}

// StatsProvider is implemented by the dispatcher.
type StatsProvider interface {
	Stats() Stats
}
