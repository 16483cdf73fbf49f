package ringqueue

import "testing"

func TestQueueOverwriteOnFull(t *testing.T) {
	q := New[int](2)

	if overwrote := q.Put(1); overwrote {
		t.Fatal("first put should not overwrite")
	}
	if overwrote := q.Put(2); overwrote {
		t.Fatal("second put should not overwrite")
	}
	if overwrote := q.Put(3); !overwrote {
		t.Fatal("third put on a full queue of capacity 2 should overwrite")
	}

	want := []struct {
		v  int
		ok bool
	}{
		{2, true},
		{3, true},
		{0, false},
	}
	for i, w := range want {
		v, ok := q.Get()
		if v != w.v || ok != w.ok {
			t.Fatalf("get %d: got (%v, %v), want (%v, %v)", i, v, ok, w.v, w.ok)
		}
	}
}

func TestQueueFlush(t *testing.T) {
	q := New[string](4)
	q.Put("a")
	q.Put("b")
	q.Put("c")

	if n := q.Flush(); n != 3 {
		t.Fatalf("Flush: got %d, want 3", n)
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty after flush")
	}
	if _, ok := q.Get(); ok {
		t.Fatal("expected Get on a flushed queue to report empty")
	}
}

func TestQueueCapacityMustBePositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive capacity")
		}
	}()
	New[int](0)
}
