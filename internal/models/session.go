package models

import "time"

// ScreenStatus represents the state of a clusters screen's poll loop.
type ScreenStatus string

const (
	ScreenStatusLoading ScreenStatus = "loading"
	ScreenStatusSuccess ScreenStatus = "success"
	ScreenStatusError   ScreenStatus = "error"
	ScreenStatusTimeout ScreenStatus = "timeout"
)

// Terminal reports whether the poll loop has stopped in this status.
func (s ScreenStatus) Terminal() bool {
	return s == ScreenStatusSuccess || s == ScreenStatusError || s == ScreenStatusTimeout
}

// ScreenState is a snapshot of one open clusters screen.
type ScreenState struct {
	ID        string        `json:"id" msgpack:"id"`
	Status    ScreenStatus  `json:"status" msgpack:"status"`
	Message   string        `json:"message,omitempty" msgpack:"message,omitempty"`
	Clusters  ClusterSet    `json:"clusters" msgpack:"clusters"`
	Attempts  int           `json:"attempts" msgpack:"attempts"`
	Selected  *SelectedFile `json:"selected,omitempty" msgpack:"selected,omitempty"`
	Version   uint64        `json:"version" msgpack:"version"`
	OpenedAt  time.Time     `json:"openedAt" msgpack:"openedAt"`
	UpdatedAt time.Time     `json:"updatedAt" msgpack:"updatedAt"`
}

// NewScreenState creates a ScreenState in loading status.
func NewScreenState(id string) *ScreenState {
	now := time.Now()
	return &ScreenState{
		ID:        id,
		Status:    ScreenStatusLoading,
		Clusters:  ClusterSet{},
		OpenedAt:  now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no mutable state with s.
func (s *ScreenState) Clone() ScreenState {
	out := *s
	out.Clusters = s.Clusters.Clone()
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}
