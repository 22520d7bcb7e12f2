package models

// A Counter is a count held by the server together with the client's
// optimistic view of it. Confirmed is the last value read from the server;
// Projected is Confirmed plus any local changes made since.
type Counter struct {
	Confirmed int `json:"confirmed"`
	Projected int `json:"projected"`
}

// Sync records a fresh server value, discarding local changes.
func (c *Counter) Sync(n int) {
	c.Confirmed = n
	c.Projected = n
}

// Bump applies a local change to the projection. The projection never goes
// below zero.
func (c *Counter) Bump(delta int) {
	c.Projected += delta
	if c.Projected < 0 {
		c.Projected = 0
	}
}
