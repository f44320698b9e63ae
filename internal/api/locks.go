package api

import "sync"

// ClientLocks hands out one mutex per client id so that turns for the same
// client never interleave their read-modify-write of the stores. Entries are
// dropped once no holder or waiter remains.
type ClientLocks struct {
	mu    sync.Mutex
	locks map[string]*clientLock
}

type clientLock struct {
	mu   sync.Mutex
	refs int
}

func NewClientLocks() *ClientLocks {
	return &ClientLocks{locks: make(map[string]*clientLock)}
}

// Lock blocks until clientID is free and returns the matching unlock.
func (c *ClientLocks) Lock(clientID string) func() {
	c.mu.Lock()
	l, ok := c.locks[clientID]
	if !ok {
		l = &clientLock{}
		c.locks[clientID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, clientID)
		}
		c.mu.Unlock()
	}
}

func (c *ClientLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
