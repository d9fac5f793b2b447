package source

import (
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/adcrec/internal/errors"
	"go.bug.st/serial"
)

// DefaultListTTL is how long an enumerated port list is reused.
const DefaultListTTL = 2 * time.Second

const portsKey = "ports"

// Lister enumerates serial ports, caching the result briefly so repeated
// lookups during open do not re-scan the system.
type Lister struct {
	cache *cache.Cache
	list  func() ([]string, error)
}

// NewLister creates a Lister backed by the system port enumeration.
func NewLister(ttl time.Duration) *Lister {
	return newLister(ttl, serial.GetPortsList)
}

func newLister(ttl time.Duration, list func() ([]string, error)) *Lister {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	// No janitor; expired entries are dropped on access
	return &Lister{cache: cache.New(ttl, 0), list: list}
}

// Ports returns the sorted port names.
func (l *Lister) Ports() ([]string, error) {
	if v, ok := l.cache.Get(portsKey); ok {
		if ports, ok := v.([]string); ok {
			return slices.Clone(ports), nil
		}
	}

	ports, err := l.list()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to enumerate serial ports: %w", err)).
			Component(ComponentSource).
			Category(errors.CategorySystem).
			Build()
	}
	slices.Sort(ports)
	l.cache.SetDefault(portsKey, ports)
	return slices.Clone(ports), nil
}

// Refresh forgets the cached list.
func (l *Lister) Refresh() {
	l.cache.Delete(portsKey)
}
