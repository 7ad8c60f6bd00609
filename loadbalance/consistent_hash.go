package loadbalance

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"codecbench/registry"

	"github.com/cespare/xxhash/v2"
)

// ConsistentHashBalancer maps a fixed key onto a hash ring of the current instances, so
// one producer keeps hitting the same listener while the instance set is stable.
//
// Each instance owns replicas virtual nodes hashed from "{addr}#{i}".
type ConsistentHashBalancer struct {
	key      string
	replicas int

	mu     sync.Mutex
	ringOf string   // instance set the ring was built from
	ring   []uint64 // sorted virtual node hashes
	nodes  map[uint64]string
}

func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{key: key, replicas: 100}
}

func (b *ConsistentHashBalancer) rebuild(instances []registry.ServiceInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	set := strings.Join(addrs, ",")
	if set == b.ringOf && b.nodes != nil {
		return
	}

	b.ring = b.ring[:0]
	b.nodes = make(map[uint64]string, len(addrs)*b.replicas)
	for _, addr := range addrs {
		for i := 0; i < b.replicas; i++ {
			h := xxhash.Sum64String(addr + "#" + strconv.Itoa(i))
			b.ring = append(b.ring, h)
			b.nodes[h] = addr
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
	b.ringOf = set
}

// Pick returns the instance owning the first virtual node at or after hash(key),
// wrapping around the ring.
func (b *ConsistentHashBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, noInstances()
	}
	b.mu.Lock()
	b.rebuild(instances)
	h := xxhash.Sum64String(b.key)
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= h })
	if idx == len(b.ring) {
		idx = 0
	}
	addr := b.nodes[b.ring[idx]]
	b.mu.Unlock()

	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return &instances[0], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
