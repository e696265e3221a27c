package models

import "time"

// Post is a status record as returned by the upstream feed
type Post struct {
	Id        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a normalized post kept in the store
type Item struct {
	Id        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
	Served    bool      `json:"served"`
}

// CreateItemEvent fired when a new item is added to the store
type CreateItemEvent struct {
	Item Item
}

// ServeItemEvent fired when an item is claimed for speech synthesis
type ServeItemEvent struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback"`
}

type StatisticsEvent struct {
	Total    int `json:"total"`
	Served   int `json:"served"`
	Unserved int `json:"unserved"`
}
