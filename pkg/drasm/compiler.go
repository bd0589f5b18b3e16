package drasm

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"

	"github.com/agenthands/drasm/pkg/vm"
)

// Config holds the tunables of a Compiler and the Registry machines it feeds.
type Config struct {
	CacheSize int `toml:",omitempty"`
	GasLimit  int `toml:",omitempty"`
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	CacheSize: 128,
	GasLimit:  vm.DefaultGas,
}

// Compiler compiles units and caches the resulting modules by source digest.
// Compilation is deterministic, so a cached module is interchangeable with a
// fresh one. Generated modules are never mutated and may be shared.
type Compiler struct {
	cfg   Config
	cache *lru.Cache
}

func NewCompiler(cfg Config) (*Compiler, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultConfig.CacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Compiler{cfg: cfg, cache: cache}, nil
}

// Compile returns the module of src, compiling it on a cache miss. Failures
// are not cached.
func (c *Compiler) Compile(src string) (*vm.Module, error) {
	key := sha256.Sum256([]byte(src))
	if cached, ok := c.cache.Get(key); ok {
		log.Debug("Compile cache hit", "digest", hex.EncodeToString(key[:4]))
		return cached.(*vm.Module), nil
	}
	mod, err := Compile(src)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, mod)
	return mod, nil
}

// Cached reports how many modules the cache holds.
func (c *Compiler) Cached() int { return c.cache.Len() }

// Purge empties the cache.
func (c *Compiler) Purge() { c.cache.Purge() }
