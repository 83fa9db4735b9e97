package storage

// Package storage persists the operator audit trail: who subscribed,
// unsubscribed or probed the broadcast channels, and how the action went.
