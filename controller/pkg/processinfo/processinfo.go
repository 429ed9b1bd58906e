package processinfo

import (
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"
)

// LookupFunc resolves the name of a process.
type LookupFunc func(pid uint32) (string, error)

// Resolver resolves process names through an expiring LRU cache. Names are
// returned lower case since rules compare them case insensitively.
type Resolver struct {
	cache gcache.Cache
}

// NewResolver returns a resolver backed by the process table of the host.
func NewResolver(size int, validity time.Duration) *Resolver {
	return NewResolverWithLookup(size, validity, systemLookup)
}

// NewResolverWithLookup returns a resolver that uses lookup on cache misses.
func NewResolverWithLookup(size int, validity time.Duration, lookup LookupFunc) *Resolver {

	return &Resolver{
		cache: gcache.New(size).
			LRU().
			Expiration(validity).
			LoaderFunc(func(key interface{}) (interface{}, error) {
				name, err := lookup(key.(uint32))
				if err != nil {
					return nil, err
				}
				return strings.ToLower(name), nil
			}).
			Build(),
	}
}

// ProcessName implements stack.ProcessNamer.
func (r *Resolver) ProcessName(pid uint32) (string, error) {

	v, err := r.cache.Get(pid)
	if err != nil {
		return "", errors.Wrapf(err, "unable to resolve process %d", pid)
	}

	return v.(string), nil
}

// Forget drops the cached name of a process that exited.
func (r *Resolver) Forget(pid uint32) {
	r.cache.Remove(pid)
}

// systemLookup prefers the executable path and falls back to the short name
// when the path is not readable.
func systemLookup(pid uint32) (string, error) {

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}

	exe, err := p.Exe()
	if err == nil && exe != "" {
		return exe, nil
	}

	zap.L().Debug("Falling back to process name", zap.Uint32("pid", pid), zap.Error(err))

	return p.Name()
}
