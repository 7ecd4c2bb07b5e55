package cache

import (
	"container/list"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/poly1603/ldesign-cache-sub004/cache/util"
)

const defaultSerializationCacheCapacity = 1024

// circularSentinel replaces the second occurrence of an already-visited
// reference during serialization rather than failing the whole call.
const circularSentinel = "\"[Circular]\""

// serializer turns arbitrary Go values into their canonical textual
// form, detecting reference cycles through maps, slices, and pointers,
// and memoizing the result per (shape, value) pair to amortize repeated
// serialization of the same value.
type serializer struct {
	cache *serializationCache
	warn  func(string)
}

func newSerializer(warn func(string)) *serializer {
	return &serializer{cache: newSerializationCache(defaultSerializationCacheCapacity), warn: warn}
}

// serialize returns the canonical text for v and its inferred DataType.
func (s *serializer) serialize(v interface{}) (string, DataType, error) {
	dataType := inferDataType(v)

	if key, ok := fastCacheKey(v); ok {
		if text, found := s.cache.get(key); found {
			return text, dataType, nil
		}
		text, err := s.encode(v)
		if err != nil {
			return "", dataType, fmt.Errorf("%w: %v", ErrSerializationFail, err)
		}
		s.cache.put(key, text)
		return text, dataType, nil
	}

	text, err := s.encode(v)
	if err != nil {
		return "", dataType, fmt.Errorf("%w: %v", ErrSerializationFail, err)
	}
	return text, dataType, nil
}

func (s *serializer) encode(v interface{}) (string, error) {
	visited := make(map[uintptr]bool)
	out, err := s.encodeValue(reflect.ValueOf(v), visited)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *serializer) encodeValue(rv reflect.Value, visited map[uintptr]bool) (string, error) {
	if !rv.IsValid() {
		return "null", nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return "null", nil
		}
		addr := rv.Pointer()
		if visited[addr] {
			if s.warn != nil {
				s.warn("circular reference detected during serialization")
			}
			return circularSentinel, nil
		}
		visited[addr] = true
		defer delete(visited, addr)
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return s.encodeValue(rv.Elem(), visited)
	case reflect.String:
		return marshalJSON(rv.String())
	case reflect.Bool:
		return marshalJSON(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return marshalJSON(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return marshalJSON(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return marshalJSON(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return marshalJSON(rv.Bytes())
		}
		return s.encodeSequence(rv, visited)
	case reflect.Map:
		return s.encodeMap(rv, visited)
	case reflect.Struct:
		return marshalJSON(rv.Interface())
	default:
		return marshalJSON(fmt.Sprintf("%v", rv.Interface()))
	}
}

func (s *serializer) encodeSequence(rv reflect.Value, visited map[uintptr]bool) (string, error) {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		text, err := s.encodeValue(rv.Index(i), visited)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}
	out := "["
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out + "]", nil
}

func (s *serializer) encodeMap(rv reflect.Value, visited map[uintptr]bool) (string, error) {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		keyText, err := marshalJSON(fmt.Sprint(k.Interface()))
		if err != nil {
			return "", err
		}
		valText, err := s.encodeValue(rv.MapIndex(k), visited)
		if err != nil {
			return "", err
		}
		out += keyText + ":" + valText
	}
	return out + "}", nil
}

func marshalJSON(v interface{}) (string, error) {
	data, err := util.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// inferDataType classifies v into the DataType enumeration.
func inferDataType(v interface{}) DataType {
	if v == nil {
		return DataTypeString
	}
	switch v.(type) {
	case []byte:
		return DataTypeBinary
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return DataTypeString
	case reflect.Bool:
		return DataTypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return DataTypeNumber
	case reflect.Slice, reflect.Array:
		return DataTypeArray
	case reflect.Map, reflect.Struct:
		return DataTypeObject
	case reflect.Ptr:
		if rv.IsNil() {
			return DataTypeString
		}
		return inferDataType(rv.Elem().Interface())
	default:
		return DataTypeString
	}
}

// fastCacheKey returns a cheap identity for v suitable for the
// serialization cache, avoiding a full traversal on the hot path.
// Scalars are hashed by value; references (map/slice/pointer) are
// identified by address, since re-serializing the same referenced value
// is the case this cache amortizes. ok is false for kinds with no cheap,
// stable identity (bare structs/arrays passed by value).
func fastCacheKey(v interface{}) (uint64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	shape := util.FingerprintKey(rv.Type().String())

	switch rv.Kind() {
	case reflect.String:
		return shape ^ util.FingerprintKey(rv.String()), true
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return shape ^ util.FingerprintKey(fmt.Sprint(v)), true
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return shape, true
		}
		return shape ^ uint64(rv.Pointer()), true
	default:
		return 0, false
	}
}

// serializationCache is a bounded LRU mapping a fastCacheKey to its
// canonical textual form.
type serializationCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	elements map[uint64]*list.Element
}

type serializationCacheEntry struct {
	key  uint64
	text string
}

func newSerializationCache(capacity int) *serializationCache {
	return &serializationCache{
		capacity: capacity,
		order:    list.New(),
		elements: make(map[uint64]*list.Element),
	}
}

func (c *serializationCache) get(key uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*serializationCacheEntry).text, true
}

func (c *serializationCache) put(key uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elements[key]; ok {
		el.Value.(*serializationCacheEntry).text = text
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&serializationCacheEntry{key: key, text: text})
	c.elements[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.elements, oldest.Value.(*serializationCacheEntry).key)
	}
}

// Cleanup empties the serialization cache, participating in the memory
// manager's emergency cleanup cascade.
func (c *serializationCache) Cleanup() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(c.order.Len())
	c.order.Init()
	c.elements = make(map[uint64]*list.Element)
	return n * 64
}

func (c *serializationCache) Name() string { return "serialization-cache" }
