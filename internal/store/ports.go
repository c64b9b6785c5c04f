// Package store declares the outbound ports of the deposit book.
package store

import (
	"context"

	"depositos/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotLoader reads the full persisted state at startup.
	SnapshotLoader interface {
		Load(ctx context.Context) (core.Snapshot, error)
	}

	// ChangeApplier persists the delta of one confirmed mutation.
	ChangeApplier interface {
		Apply(ctx context.Context, c core.Change) error
	}

	// Store is the save boundary of the deposit service.
	Store interface {
		SnapshotLoader
		ChangeApplier
		Close() error
	}

	// EventPublisher announces confirmed changes downstream.
	EventPublisher interface {
		Publish(ctx context.Context, e core.Event) error
	}

	// PasswordStore keeps the admin password hash.
	PasswordStore interface {
		AdminPasswordHash(ctx context.Context) (hash []byte, ok bool, err error)
		SetAdminPasswordHash(ctx context.Context, hash []byte) error
	}

	// Mirror receives a full copy of the state, replacing what it held.
	Mirror interface {
		Replace(ctx context.Context, s core.Snapshot) error
	}
)
