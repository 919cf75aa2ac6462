// Package roster keeps the locally cached view of which known users are
// online and when they last exchanged a message with the current user.
//
// The cache is merge-only: server snapshots update or insert entries but
// never remove them, so users seen once stay listed (offline) even when a
// later snapshot omits them.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"agora/internal/models"
	"agora/internal/storage"
)

const storeKey = "users"

type Cache struct {
	mu      sync.Mutex
	entries map[string]*models.RosterEntry

	db  *storage.Store
	log *zap.Logger
}

// NewCache builds a roster cache backed by db and reloads any roster
// persisted by a previous run.
func NewCache(db *storage.Store, log *zap.Logger) *Cache {
	c := &Cache{
		entries: make(map[string]*models.RosterEntry),
		db:      db,
		log:     log,
	}
	c.load()
	return c
}

func (c *Cache) load() {
	raw, err := c.db.Get(context.Background(), storage.NamespaceRoster, storeKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNoRows) {
			c.log.Warn("load roster", zap.Error(err))
		}
		return
	}
	var stored []models.RosterEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.log.Warn("decode stored roster", zap.Error(err))
		return
	}
	for i := range stored {
		e := stored[i]
		c.entries[e.UserID] = &e
	}
}

// persist must be called with c.mu held.
func (c *Cache) persist() {
	stored := make([]models.RosterEntry, 0, len(c.entries))
	for _, e := range c.entries {
		stored = append(stored, *e)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		c.log.Warn("encode roster", zap.Error(err))
		return
	}
	if err := c.db.Put(context.Background(), storage.NamespaceRoster, storeKey, raw); err != nil {
		c.log.Warn("persist roster", zap.Error(err))
	}
}

// Reconcile merges an authoritative presence snapshot into the cache.
// Existing entries keep their LastMessageTime; unknown users are inserted
// with no interaction history. Entries absent from the snapshot are left
// untouched. Applying the same snapshot twice is a no-op.
func (c *Cache) Reconcile(snapshot []models.UserStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range snapshot {
		if st.UserID == "" {
			continue
		}
		if e, ok := c.entries[st.UserID]; ok {
			e.IsOnline = st.IsOnline
			if st.Username != "" {
				e.Username = st.Username
			}
			continue
		}
		c.entries[st.UserID] = &models.RosterEntry{
			UserID:          st.UserID,
			Username:        st.Username,
			IsOnline:        st.IsOnline,
			LastMessageTime: nil,
		}
	}
	c.persist()
}

// RecordInteraction stamps the last-message time for userID, inserting a
// provisional online entry when a message arrives from a user no status
// push has mentioned yet.
func (c *Cache) RecordInteraction(userID, userName string, ts time.Time) {
	if userID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[userID]; ok {
		t := ts
		e.LastMessageTime = &t
		if userName != "" {
			e.Username = userName
		}
	} else {
		t := ts
		c.entries[userID] = &models.RosterEntry{
			UserID:          userID,
			Username:        userName,
			IsOnline:        true,
			LastMessageTime: &t,
		}
	}
	c.persist()
}

// Get returns a copy of the entry for userID.
func (c *Cache) Get(userID string) (models.RosterEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return models.RosterEntry{}, false
	}
	return *e, true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SortedView returns all entries except excludeUserID, most recent
// conversation first. Entries without any interaction sort last, ties by
// case-insensitive username. The rendering layer relies on this order.
func (c *Cache) SortedView(excludeUserID string) []models.RosterEntry {
	c.mu.Lock()
	out := make([]models.RosterEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.UserID == excludeUserID {
			continue
		}
		out = append(out, *e)
	}
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageTime, out[j].LastMessageTime
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.After(*tj)
		case ti != nil && tj == nil:
			return true
		case ti == nil && tj != nil:
			return false
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out
}
