// Package store persists workflow definitions and run records: definitions
// in a relational database through gorm, run summaries in redis with a TTL.
package store
