// Package store provides abstractions and interfaces for data persistence.
// Implementations live under internal/platform; services depend only on the
// interfaces defined here.
package store
