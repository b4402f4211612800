package domain

import "time"

// NoteChatbotUsage records one chat question answered against one note.
type NoteChatbotUsage struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Question  string    `json:"question"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoteUsageStat aggregates chatbot usage per note.
type NoteUsageStat struct {
	NoteID string `json:"noteId"`
	Title  string `json:"title"`
	Total  int    `json:"total"`
}
