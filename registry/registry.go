// Package registry lets producers find listeners by codec name.
//
// A listener registers its advertise address under the name of the codec it decodes
// ("binary" or "json"); a producer discovers instances under the same name.
package registry

import "github.com/cockroachdb/errors"

var ErrNoInstances = errors.New("registry: no instances")

type ServiceInstance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
	// Close releases the registry; Watch channels are closed.
	Close() error
}
