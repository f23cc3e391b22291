package kvlite

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Derived counter and list operations, built on the core get/set pair.
// The store mutex held for the whole read-modify-write makes each of
// these atomic with respect to every other operation on the same Store.
// Rewrites preserve the entry's existing expiry, so incrementing a
// counter does not cancel its TTL.

// Incr adds by to the integer stored under key (absent keys count as 0)
// and returns the new value.
func (s *Store) Incr(key any, by int64) (int64, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exp, found, err := s.lookup(k)
	if err != nil {
		return 0, err
	}

	var current int64
	if found {
		value, err := s.decode(k, raw)
		if err != nil {
			return 0, err
		}
		current, err = toInt64(value)
		if err != nil {
			return 0, fmt.Errorf("%w: key %q", err, k)
		}
	}

	next := current + by
	if err := s.put(k, next, exp); err != nil {
		return 0, err
	}
	return next, nil
}

// Decr is Incr with the delta negated.
func (s *Store) Decr(key any, by int64) (int64, error) {
	return s.Incr(key, -by)
}

// Count returns the length of the list stored under key. Absent keys
// and non-list values count as empty.
func (s *Store) Count(key any) (int, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, _, err := s.lookupList(k)
	if err != nil {
		if err == errNotListValue {
			return 0, nil
		}
		return 0, err
	}
	return len(list), nil
}

// RPush appends value to the list stored under key (absent keys start
// empty) and returns the new length.
func (s *Store) RPush(key, value any) (int, error) {
	return s.push(key, value, false)
}

// LPush prepends value to the list stored under key (absent keys start
// empty) and returns the new length.
func (s *Store) LPush(key, value any) (int, error) {
	return s.push(key, value, true)
}

func (s *Store) push(key, value any, front bool) (int, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, exp, err := s.lookupList(k)
	if err != nil {
		if err == errNotListValue {
			return 0, fmt.Errorf("%w: key %q", ErrNotList, k)
		}
		return 0, err
	}

	if front {
		list = append([]any{value}, list...)
	} else {
		list = append(list, value)
	}

	if err := s.put(k, list, exp); err != nil {
		return 0, err
	}
	return len(list), nil
}

// LSet replaces the element at idx in the list stored under key.
// Negative idx counts from the end. Returns false without mutating
// when idx is out of bounds.
func (s *Store) LSet(key any, idx int, value any) (bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, exp, err := s.lookupList(k)
	if err != nil {
		if err == errNotListValue {
			return false, fmt.Errorf("%w: key %q", ErrNotList, k)
		}
		return false, err
	}

	i, ok := resolveIndex(idx, len(list))
	if !ok {
		return false, nil
	}

	list[i] = value
	if err := s.put(k, list, exp); err != nil {
		return false, err
	}
	return true, nil
}

// LIndex returns the element at idx in the list stored under key, or
// nil when idx is out of bounds. Negative idx counts from the end.
func (s *Store) LIndex(key any, idx int) (any, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, _, err := s.lookupList(k)
	if err != nil {
		if err == errNotListValue {
			return nil, fmt.Errorf("%w: key %q", ErrNotList, k)
		}
		return nil, err
	}

	i, ok := resolveIndex(idx, len(list))
	if !ok {
		return nil, nil
	}
	return list[i], nil
}

// errNotListValue marks a live entry whose value is not a sequence.
// Callers translate it per operation: Count treats it as empty, the
// mutating operations surface ErrNotList.
var errNotListValue = fmt.Errorf("not a list value")

// lookupList fetches the list stored under k, defaulting to empty when
// the key is absent. Caller holds s.mu.
func (s *Store) lookupList(k string) ([]any, int64, error) {
	raw, exp, found, err := s.lookup(k)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		return nil, 0, nil
	}

	value, err := s.decode(k, raw)
	if err != nil {
		return nil, 0, err
	}

	list, ok := value.([]any)
	if !ok {
		return nil, 0, errNotListValue
	}
	return list, exp, nil
}

// resolveIndex maps a possibly-negative index onto [0, length).
func resolveIndex(idx, length int) (int, bool) {
	if idx < 0 {
		idx = length + idx
	}
	if idx < 0 || idx >= length {
		return 0, false
	}
	return idx, true
}

// toInt64 coerces a decoded JSON value to an integer counter value.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, ErrNotInteger
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	default:
		return 0, ErrNotInteger
	}
}
