package server

import (
	"context"
	"errors"

	"github.com/dray-io/circular/internal/objectstore"
)

// healthProbePrefix is listed, never written, to prove the bucket answers.
const healthProbePrefix = "circular-health-check/"

// ObjectStoreChecker reports the dump bucket as ready when a List succeeds.
type ObjectStoreChecker struct {
	store objectstore.Store
}

// NewObjectStoreChecker creates an ObjectStoreChecker.
func NewObjectStoreChecker(store objectstore.Store) *ObjectStoreChecker {
	return &ObjectStoreChecker{store: store}
}

func (c *ObjectStoreChecker) Name() string {
	return "object_store"
}

// CheckReady lists a prefix that normally holds nothing. An empty result and
// a not-found error both mean the store is reachable.
func (c *ObjectStoreChecker) CheckReady(ctx context.Context) error {
	if c.store == nil {
		return errors.New("object store not configured")
	}
	_, err := c.store.List(ctx, healthProbePrefix)
	if err == nil || errors.Is(err, objectstore.ErrNotFound) {
		return nil
	}
	return err
}

// FuncChecker adapts a function to ReadinessChecker.
type FuncChecker struct {
	name  string
	check func(context.Context) error
}

// NewFuncChecker creates a FuncChecker. A nil check is always ready.
func NewFuncChecker(name string, check func(context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) CheckReady(ctx context.Context) error {
	if c.check == nil {
		return nil
	}
	return c.check(ctx)
}
