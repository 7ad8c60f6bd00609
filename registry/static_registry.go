package registry

import "sync"

// StaticRegistry is an in-process registry, used when no etcd endpoints are configured.
// TTLs are ignored.
type StaticRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
	closed    bool
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// NewStaticRegistryFrom seeds one instance per service from a name → address map.
// Empty addresses are skipped.
func NewStaticRegistryFrom(addrs map[string]string) *StaticRegistry {
	r := NewStaticRegistry()
	for name, addr := range addrs {
		if addr == "" {
			continue
		}
		r.instances[name] = []ServiceInstance{{Addr: addr, Weight: 1}}
	}
	return r
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := r.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == instance.Addr {
			insts[i] = instance
			r.notify(serviceName)
			return nil
		}
	}
	r.instances[serviceName] = append(insts, instance)
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := r.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == addr {
			r.instances[serviceName] = append(insts[:i:i], insts[i+1:]...)
			r.notify(serviceName)
			break
		}
	}
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(serviceName), nil
}

// Watch emits the instance list after every change. Slow readers only see the latest list.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch
	}
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	return ch
}

// Close closes every Watch channel. Registrations stay readable through Discover.
func (r *StaticRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for name, chs := range r.watchers {
		for _, ch := range chs {
			close(ch)
		}
		delete(r.watchers, name)
	}
	return nil
}

func (r *StaticRegistry) snapshot(serviceName string) []ServiceInstance {
	out := make([]ServiceInstance, len(r.instances[serviceName]))
	copy(out, r.instances[serviceName])
	return out
}

// notify must be called with mu held.
func (r *StaticRegistry) notify(serviceName string) {
	list := r.snapshot(serviceName)
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
