// Package cacheclient is a uniform cache facade over several backends
// (an in-process map, Memcached, Redis, Ristretto). Every provider implements
// the same operations and reports each outcome as a Response that separates
// "the backend said no" from "the backend could not be reached".
//
// Components:
//   - Provider: the operation contract (provider/memory, provider/memcached,
//     provider/redis, provider/ristretto).
//   - genstore.Composer: maps logical keys and namespaces to physical keys.
//   - codec.Codec[any]: encodes values for network backends (JSON by default).
//   - factory: builds providers from option maps or YAML config.
//
// Keys:
//
//	<prefix><sep><key>                        - plain entries
//	<prefix><sep><ns>                         - the namespace generation
//	<prefix><sep><ns><sep><gen><sep><key>     - namespaced entries
//
// Flushing a namespace deletes its generation; entries written under the old
// generation become unreachable and age out on the backend's own schedule.
//
//	p, _ := memory.New(memory.DefaultConfig())
//	p.Set(ctx, "alice", user, time.Hour, cacheclient.WithNamespace("users"))
//	p.Flush(ctx, "users")
//	r := p.Get(ctx, "alice", cacheclient.WithNamespace("users"))
//	errors.Is(r.Err(), cacheclient.ErrNotFound) // true
package cacheclient
