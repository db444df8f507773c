package audit

import "time"

// TimelineRow is one audit entry joined with the actor's display name.
// ActorName is empty for system-triggered records.
type TimelineRow struct {
	ID        int64          `json:"id"`
	At        time.Time      `json:"at"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// TimelineFilters narrows the timeline query. Zero values mean no filter.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  *int64
	Action   string
	Entity   string
	Page     int
	PageSize int
}

// PagingInfo describes navigation state for a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles a timeline page with its paging info.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
