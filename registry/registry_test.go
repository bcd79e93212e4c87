package registry

import "testing"

type fakeClient struct {
	reaped int
}

func (f *fakeClient) ReapTimeouts() { f.reaped++ }

func TestAddRemoveLen(t *testing.T) {
	r := New(2)
	a, b := &fakeClient{}, &fakeClient{}

	if err := r.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	r.Remove(a)
	if r.Len() != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", r.Len())
	}

	// Removing an already-removed client is a no-op.
	r.Remove(a)
	if r.Len() != 1 {
		t.Fatalf("Len() after double Remove = %d, want 1", r.Len())
	}
}

func TestAddRejectsOverCapacity(t *testing.T) {
	r := New(1)
	if err := r.Add(&fakeClient{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := r.Add(&fakeClient{})
	if _, ok := err.(ErrFull); !ok {
		t.Fatalf("Add() over capacity err = %v, want ErrFull", err)
	}
}

func TestIterateVisitsEveryMember(t *testing.T) {
	r := New(4)
	clients := []*fakeClient{{}, {}, {}}
	for _, c := range clients {
		if err := r.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	r.Iterate(func(c Reapable) { c.ReapTimeouts() })

	for i, c := range clients {
		if c.reaped != 1 {
			t.Errorf("client %d reaped %d times, want 1", i, c.reaped)
		}
	}
}
