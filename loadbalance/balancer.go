// Package loadbalance picks one listener among the instances registered for a codec.
//
// Strategies:
//   - RoundRobin:      listeners of equal capacity
//   - WeightedRandom:  listeners on uneven hosts
//   - ConsistentHash:  a producer sticks to one listener per key
package loadbalance

import (
	"codecbench/registry"

	"github.com/cockroachdb/errors"
)

// Balancer is goroutine-safe; Pick is called once per shipped buffer.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer for a config name. key feeds ConsistentHash and is ignored otherwise.
func New(name, key string) (Balancer, error) {
	switch name {
	case "", "round-robin", "RoundRobin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random", "WeightedRandom":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash", "ConsistentHash":
		return NewConsistentHashBalancer(key), nil
	default:
		return nil, errors.Newf("loadbalance: unknown balancer %q", name)
	}
}

func noInstances() error {
	return errors.Wrap(registry.ErrNoInstances, "loadbalance: pick")
}
