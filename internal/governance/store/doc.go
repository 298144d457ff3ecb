// Package store holds router snapshot persistence adapters. Every adapter
// implements ports.Store: Load returns sentinel.ErrNotFound for an unknown
// domain and sentinel.ErrInvalidState for a snapshot that no longer
// validates; Save replaces the whole snapshot for the state's domain.
package store
