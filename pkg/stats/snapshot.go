// Package stats synthesizes the chat server statistics shown by the dashboard.
//
// None of these numbers come from the chat server. A Sampler probes TCP
// reachability and, when the server answers, fabricates bounded random
// counts and names. When it does not, the live counters are zeroed.
package stats

import (
	"fmt"
	"time"
)

// Status is the reachability state reported on the dashboard.
type Status string

const (
	Online  Status = "Online"
	Offline Status = "Offline"
)

// Snapshot is the latest set of simulated chat server statistics.
type Snapshot struct {
	Status               Status    `json:"server_status"`
	ActiveClientCount    int       `json:"active_client_count"`
	RoomCount            int       `json:"room_count"`
	MessagesPerMinute    int       `json:"messages_per_minute"`
	ConnectedClientNames []string  `json:"connected_client_names"`
	RoomNames            []string  `json:"room_names"`
	Uptime               string    `json:"uptime"`
	MessageCount         int       `json:"message_count"`
	SampledAt            time.Time `json:"sampled_at"`
}

// InitialSnapshot is what readers see before the first tick.
func InitialSnapshot() Snapshot {
	return Snapshot{
		Status:               Offline,
		ConnectedClientNames: []string{},
		RoomNames:            []string{},
		Uptime:               FormatUptime(0),
	}
}

// Clone returns a deep copy; readers may modify it freely.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.ConnectedClientNames = append([]string{}, s.ConnectedClientNames...)
	out.RoomNames = append([]string{}, s.RoomNames...)
	return out
}

// FormatUptime renders d as H:MM:SS. Negative durations render as zero.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
