package schema

import "time"

// Thread is a chat thread record owned by the thread store.
type Thread struct {
	ID        ThreadID  `json:"id"`
	Title     string    `json:"title"`
	Private   bool      `json:"private,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a single chat message in a thread.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadSnapshot is the payload handed to a new surface so it can render a
// thread without fetching it.
type ThreadSnapshot struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
}
