package channel

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/framework"
)

// Registry is the set of named channels.
type Registry struct {
	lock     sync.RWMutex
	channels map[string]*Channel
	order    []*Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// NewRegistryFromConfig creates all channels in confs.
func NewRegistryFromConfig(confs []Config) (*Registry, error) {
	r := NewRegistry()
	for _, conf := range confs {
		c, err := New(conf)
		if err != nil {
			return nil, err
		}
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a channel, names must be unique.
func (r *Registry) Add(c *Channel) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exist := r.channels[c.Name()]; exist {
		return errors.Errorf("channel %s already exists", c.Name())
	}
	r.channels[c.Name()] = c
	r.order = append(r.order, c)
	return nil
}

// Get finds a channel by name.
func (r *Registry) Get(name string) (*Channel, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.channels[name]
	return c, ok
}

// Channels returns channels in the order they were added.
func (r *Registry) Channels() []*Channel {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]*Channel(nil), r.order...)
}

// AddToLoop implements framework.LoopAdder.
func (r *Registry) AddToLoop(l *framework.Loop) {
	for _, c := range r.Channels() {
		l.Add(c)
	}
}
