package fastmap

import "testing"

func TestSetGet(t *testing.T) {
	m := New[int](4)
	m.Set(10, 100)
	m.Set(20, 200)
	m.Set(30, 300)

	if v, ok := m.Get(20); !ok || v != 200 {
		t.Fatalf("Get(20) = (%d, %v), want (200, true)", v, ok)
	}
	if _, ok := m.Get(999); ok {
		t.Fatal("Get(999) found a value that was never set")
	}
}

func TestOverwrite(t *testing.T) {
	m := New[string](4)
	m.Set(1, "a")
	m.Set(1, "b")
	if v, ok := m.Get(1); !ok || v != "b" {
		t.Fatalf("Get(1) = (%q, %v), want (\"b\", true)", v, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestDeleteAndReinsertProbeChain(t *testing.T) {
	m := New[int](4)
	for i := uint32(0); i < 20; i++ {
		m.Set(i, int(i)*10)
	}
	for i := uint32(0); i < 20; i += 2 {
		m.Delete(i)
	}
	for i := uint32(0); i < 20; i++ {
		v, ok := m.Get(i)
		if i%2 == 0 {
			if ok {
				t.Fatalf("Get(%d) still present after delete", i)
			}
			continue
		}
		if !ok || v != int(i)*10 {
			t.Fatalf("Get(%d) = (%d, %v), want (%d, true)", i, v, ok, i*10)
		}
	}
}

func TestGrowth(t *testing.T) {
	m := New[int](2)
	for i := uint32(0); i < 1000; i++ {
		m.Set(i, int(i))
	}
	if m.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", m.Len())
	}
	for i := uint32(0); i < 1000; i++ {
		if v, ok := m.Get(i); !ok || v != int(i) {
			t.Fatalf("Get(%d) = (%d, %v)", i, v, ok)
		}
	}
}
