package common

// Phase is the state of a client's transaction as seen by the client.
type Phase string

const (
	// Idle means no transaction id is held.
	Idle Phase = "idle"
	// Active means a transaction id was issued and SET/GET may run.
	Active Phase = "active"
)
