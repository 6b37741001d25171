package store

import (
	"context"
	"errors"
)

// ErrUnavailable is returned, wrapped, when the durable medium cannot be
// reached or rejects an operation.
var ErrUnavailable = errors.New("token store unavailable")

// Slot names the part of the store a Change touched.
type Slot string

const (
	SlotAccess  Slot = "access"
	SlotRefresh Slot = "refresh"
	SlotPair    Slot = "pair"
	SlotClear   Slot = "clear"
)

// Change is delivered to watchers after a successful mutation.
type Change struct {
	Slot Slot
}

// Store is the durable holder of one origin's token pair. Implementations are
// safe for concurrent use.
type Store interface {
	Access(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
	SetAccess(ctx context.Context, token string) error
	SetRefresh(ctx context.Context, token string) error
	// SetPair writes both slots as one operation.
	SetPair(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
	// SwapPair writes both slots only while the stored refresh token equals
	// expect. Empty access and refresh clear the store. swapped is false when
	// another writer replaced the refresh token first; nothing is written then.
	SwapPair(ctx context.Context, expect, access, refresh string) (swapped bool, err error)
	// Watch registers fn for changes made through any handle on the same
	// medium. The returned stop func is idempotent.
	Watch(ctx context.Context, fn func(Change)) (stop func(), err error)
}

func swapSlot(access, refresh string) Slot {
	if access == "" && refresh == "" {
		return SlotClear
	}
	return SlotPair
}

// Load reads both slots.
func Load(ctx context.Context, s Store) (access, refresh string, err error) {
	access, err = s.Access(ctx)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.Refresh(ctx)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
