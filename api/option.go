package api

import (
	"fmt"
	"sync"
)

// OptionKey identifies a recognized Channel configuration option. Two
// OptionKey values with the same name are required to be the same
// object; NewOptionKey enforces process-wide uniqueness per spec §6.
//
// OptionKey wraps a pointer so values remain comparable (and usable as
// map keys) despite carrying a validate function internally.
type OptionKey struct {
	*optionKeyData
}

type optionKeyData struct {
	name     string
	validate func(v any) bool
}

// Name returns the option's registered name.
func (k OptionKey) Name() string { return k.name }

var (
	optionRegistryMu sync.Mutex
	optionRegistry   = map[string]OptionKey{}
)

// NewOptionKey registers a new option key. It panics if a key with the
// same name already exists, matching spec §6's "attempting to create a
// second key with the same name is an error" — configuration errors are
// reported synchronously, and key creation happens at package init time,
// never from user request paths.
func NewOptionKey(name string, validate func(v any) bool) OptionKey {
	optionRegistryMu.Lock()
	defer optionRegistryMu.Unlock()
	if _, exists := optionRegistry[name]; exists {
		panic(fmt.Sprintf("api: duplicate option key %q: %v", name, ErrDuplicateKey))
	}
	if validate == nil {
		validate = func(any) bool { return true }
	}
	k := OptionKey{&optionKeyData{name: name, validate: validate}}
	optionRegistry[name] = k
	return k
}

// Valid reports whether v is an acceptable value for this option.
func (k OptionKey) Valid(v any) bool {
	if k.validate == nil {
		return true
	}
	return k.validate(v)
}

// Recognized channel options. The set is extensible: transports may add
// their own via NewOptionKey; channel.Config logs and skips options a
// given channel's transport does not understand.
var (
	OptionReceiveBufferSize  = NewOptionKey("receiveBufferSize", isPositiveInt)
	OptionSendBufferSize     = NewOptionKey("sendBufferSize", isPositiveInt)
	OptionAutoRead           = NewOptionKey("autoRead", isBool)
	OptionConnectTimeout     = NewOptionKey("connectTimeoutMillis", isPositiveInt)
	OptionWriteHighWatermark = NewOptionKey("writeBufferHighWaterMark", isPositiveInt)
	OptionWriteLowWatermark  = NewOptionKey("writeBufferLowWaterMark", isPositiveInt)
	OptionBacklog            = NewOptionKey("backlog", isPositiveInt)
	OptionTCPNoDelay         = NewOptionKey("tcpNoDelay", isBool)
	OptionReusePort          = NewOptionKey("reusePort", isBool)
	OptionSoLinger           = NewOptionKey("soLinger", isInt)
)

func isPositiveInt(v any) bool { n, ok := v.(int); return ok && n >= 0 }
func isInt(v any) bool         { _, ok := v.(int); return ok }
func isBool(v any) bool        { _, ok := v.(bool); return ok }

// OptionMap is an append-only, insertion-ordered set of option values:
// later options may validate against earlier ones, so iteration order is
// preserved (spec §5). Applying a nil value removes the option.
type OptionMap struct {
	mu     sync.RWMutex
	order  []OptionKey
	values map[OptionKey]any
}

// NewOptionMap returns an empty OptionMap.
func NewOptionMap() *OptionMap {
	return &OptionMap{values: make(map[OptionKey]any)}
}

// Set applies value for key, appending key to the insertion order the
// first time it is set. A nil value removes the option but keeps the
// key's position, so setting it again later reuses that position.
func (m *OptionMap) Set(key OptionKey, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.values, key)
		return nil
	}
	if !key.Valid(value) {
		return fmt.Errorf("api: invalid value %v for option %q", value, key.name)
	}
	known := false
	for _, k := range m.order {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		m.order = append(m.order, key)
	}
	m.values[key] = value
	return nil
}

// Get returns the configured value for key, if any.
func (m *OptionMap) Get(key OptionKey) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Each calls fn for every configured option, in insertion order.
func (m *OptionMap) Each(fn func(OptionKey, any)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.order {
		if v, ok := m.values[k]; ok {
			fn(k, v)
		}
	}
}
