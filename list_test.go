package kvlite

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestIncr(t *testing.T) {
	s, _ := newTestStore(t)

	// Absent key behaves as 0.
	got, err := s.Incr("counter", 5)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if got != 5 {
		t.Errorf("Incr on absent key = %d, want 5", got)
	}

	got, err = s.Incr("counter", 3)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if got != 8 {
		t.Errorf("Incr = %d, want 8", got)
	}
}

func TestDecr(t *testing.T) {
	s, _ := newTestStore(t)

	for _, n := range []int64{1, 7, -4} {
		key := "c"
		if err := s.Set(key, 100, nil); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		dec, err := s.Decr(key, n)
		if err != nil {
			t.Fatalf("Decr failed: %v", err)
		}

		if err := s.Set(key, 100, nil); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		inc, err := s.Incr(key, -n)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}

		if dec != inc {
			t.Errorf("Decr(%d) = %d, Incr(%d) = %d, want equal", n, dec, -n, inc)
		}
	}
}

func TestIncr_PreservesExpiry(t *testing.T) {
	s, clk := newTestStore(t)

	if err := s.Set("counter", 1, &SetOptions{TTL: time.Hour}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := s.Incr("counter", 1); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}

	entries, err := s.Entries(false)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Entries = %d rows, want 1", len(entries))
	}
	want := clk.Now().UTC().Add(time.Hour).Unix()
	if entries[0].ExpiresAt != want {
		t.Errorf("expiry after Incr = %d, want %d (unchanged)", entries[0].ExpiresAt, want)
	}
}

func TestIncr_NonInteger(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Set("k", map[string]any{"a": 1}, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Incr("k", 1); !errors.Is(err, ErrNotInteger) {
		t.Errorf("Incr on map error = %v, want ErrNotInteger", err)
	}

	if err := s.Set("f", 1.5, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Incr("f", 1); !errors.Is(err, ErrNotInteger) {
		t.Errorf("Incr on fractional value error = %v, want ErrNotInteger", err)
	}
}

func TestIncr_NumericString(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Set("k", "41", nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Incr("k", 1)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Incr = %d, want 42", got)
	}
}

func TestPushAndIndex(t *testing.T) {
	s, _ := newTestStore(t)

	n, err := s.RPush("l", "a")
	if err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RPush = %d, want 1", n)
	}

	n, err = s.RPush("l", "b")
	if err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RPush = %d, want 2", n)
	}

	first, err := s.LIndex("l", 0)
	if err != nil {
		t.Fatalf("LIndex failed: %v", err)
	}
	if first != "a" {
		t.Errorf("LIndex(0) = %v, want a", first)
	}

	last, err := s.LIndex("l", -1)
	if err != nil {
		t.Fatalf("LIndex failed: %v", err)
	}
	if last != "b" {
		t.Errorf("LIndex(-1) = %v, want b", last)
	}

	count, err := s.Count("l")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

func TestLPush_Prepends(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.LPush("l", "a"); err != nil {
		t.Fatalf("LPush failed: %v", err)
	}
	if _, err := s.LPush("l", "b"); err != nil {
		t.Fatalf("LPush failed: %v", err)
	}

	first, err := s.LIndex("l", 0)
	if err != nil {
		t.Fatalf("LIndex failed: %v", err)
	}
	if first != "b" {
		t.Errorf("LIndex(0) = %v, want b", first)
	}
}

func TestLSet(t *testing.T) {
	s, _ := newTestStore(t)

	for _, v := range []string{"a", "b", "c"} {
		if _, err := s.RPush("l", v); err != nil {
			t.Fatalf("RPush failed: %v", err)
		}
	}

	tests := []struct {
		name string
		idx  int
		ok   bool
		want []any // full list after the call
	}{
		{"in_bounds", 1, true, []any{"a", "x", "c"}},
		{"negative", -1, true, []any{"a", "x", "x"}},
		{"out_of_bounds", 3, false, []any{"a", "x", "x"}},
		{"negative_out_of_bounds", -4, false, []any{"a", "x", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.LSet("l", tt.idx, "x")
			if err != nil {
				t.Fatalf("LSet failed: %v", err)
			}
			if ok != tt.ok {
				t.Errorf("LSet(%d) = %v, want %v", tt.idx, ok, tt.ok)
			}
			got, err := s.Get("l")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("list after LSet = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestLSet_EmptyList(t *testing.T) {
	s, _ := newTestStore(t)

	ok, err := s.LSet("absent", 0, "x")
	if err != nil {
		t.Fatalf("LSet failed: %v", err)
	}
	if ok {
		t.Error("LSet on absent key should report out of bounds")
	}

	// No entry must have been created.
	exists, err := s.Exists("absent")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("LSet out of bounds must not create an entry")
	}
}

func TestLIndex_OutOfBounds(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.RPush("l", "a"); err != nil {
		t.Fatalf("RPush failed: %v", err)
	}

	for _, idx := range []int{1, -2, 99} {
		got, err := s.LIndex("l", idx)
		if err != nil {
			t.Fatalf("LIndex failed: %v", err)
		}
		if got != nil {
			t.Errorf("LIndex(%d) = %v, want nil", idx, got)
		}
	}

	got, err := s.LIndex("absent", 0)
	if err != nil {
		t.Fatalf("LIndex failed: %v", err)
	}
	if got != nil {
		t.Errorf("LIndex on absent key = %v, want nil", got)
	}
}

func TestCount_NonList(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Set("scalar", "v", nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	count, err := s.Count("scalar")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count on non-list = %d, want 0", count)
	}

	count, err = s.Count("absent")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count on absent key = %d, want 0", count)
	}
}

func TestPush_NonList(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Set("scalar", "v", nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := s.RPush("scalar", "x"); !errors.Is(err, ErrNotList) {
		t.Errorf("RPush on non-list error = %v, want ErrNotList", err)
	}
	if _, err := s.LPush("scalar", "x"); !errors.Is(err, ErrNotList) {
		t.Errorf("LPush on non-list error = %v, want ErrNotList", err)
	}
	if _, err := s.LSet("scalar", 0, "x"); !errors.Is(err, ErrNotList) {
		t.Errorf("LSet on non-list error = %v, want ErrNotList", err)
	}
	if _, err := s.LIndex("scalar", 0); !errors.Is(err, ErrNotList) {
		t.Errorf("LIndex on non-list error = %v, want ErrNotList", err)
	}
}

func TestPush_ExpiredListStartsFresh(t *testing.T) {
	s, clk := newTestStore(t)

	if _, err := s.RPush("l", "old"); err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if err := s.Set("l", []any{"old"}, &SetOptions{TTL: time.Second}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clk.advance(2 * time.Second)

	n, err := s.RPush("l", "new")
	if err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RPush after expiry = %d, want 1 (fresh list)", n)
	}
}
