package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix roots every listener entry: /codecbench/{codec}/{addr} → JSON ServiceInstance.
const KeyPrefix = "/codecbench/"

// EtcdRegistry stores listener entries under TTL leases so a crashed listener
// disappears once its lease expires.
type EtcdRegistry struct {
	client  *clientv3.Client
	timeout time.Duration

	mu         sync.Mutex
	keepAlives map[string]context.CancelFunc // key → lease renewal
}

// NewEtcdRegistry connects to endpoints. timeout bounds each etcd request.
func NewEtcdRegistry(endpoints []string, timeout time.Duration) (*EtcdRegistry, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "etcd connect %v", endpoints)
	}
	return &EtcdRegistry{client: c, timeout: timeout, keepAlives: make(map[string]context.CancelFunc)}, nil
}

func key(serviceName, addr string) string {
	return KeyPrefix + serviceName + "/" + addr
}

func prefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register puts the instance under a lease of ttl seconds and renews it until Deregister or Close.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "etcd grant")
	}
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	k := key(serviceName, instance.Addr)
	if _, err := r.client.Put(ctx, k, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "etcd put %s", k)
	}

	// The keep-alive context outlives this call; it is cancelled on Deregister.
	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		return errors.Wrap(err, "etcd keepalive")
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	if prev, ok := r.keepAlives[k]; ok {
		prev()
	}
	r.keepAlives[k] = kaCancel
	r.mu.Unlock()
	return nil
}

// Deregister stops lease renewal and deletes the entry.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	k := key(serviceName, addr)
	r.mu.Lock()
	if stop, ok := r.keepAlives[k]; ok {
		stop()
		delete(r.keepAlives, k)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.client.Delete(ctx, k); err != nil {
		return errors.Wrapf(err, "etcd delete %s", k)
	}
	return nil
}

// Discover returns every instance registered under serviceName. Malformed entries are skipped.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, prefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "etcd get %s", prefix(serviceName))
	}
	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Watch emits the full instance list after every change under serviceName.
// The channel closes when the registry is closed.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	go func() {
		defer close(ch)
		for range r.client.Watch(context.Background(), prefix(serviceName), clientv3.WithPrefix()) {
			instances, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()
	return ch
}

// Close stops all lease renewals and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for k, stop := range r.keepAlives {
		stop()
		delete(r.keepAlives, k)
	}
	r.mu.Unlock()
	return r.client.Close()
}
