package models

import (
	"reflect"
	"testing"
)

func TestDomainSetDiff(t *testing.T) {
	tests := []struct {
		name    string
		known   []string
		fetched []string
		want    []string
	}{
		{
			name:    "new entries keep fetched order",
			known:   []string{"a.com", "b.com"},
			fetched: []string{"d.com", "b.com", "c.com"},
			want:    []string{"d.com", "c.com"},
		},
		{
			name:    "nothing new",
			known:   []string{"a.com", "b.com"},
			fetched: []string{"b.com", "a.com"},
			want:    nil,
		},
		{
			name:    "empty history",
			known:   nil,
			fetched: []string{"x.org"},
			want:    []string{"x.org"},
		},
		{
			name:    "duplicates reported once",
			known:   []string{"a.com"},
			fetched: []string{"c.com", "a.com", "c.com"},
			want:    []string{"c.com"},
		},
		{
			name:    "empty fetch",
			known:   []string{"a.com"},
			fetched: []string{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewDomainSet(tt.known...)
			got := set.Diff(tt.fetched)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainSetMergeIsUnion(t *testing.T) {
	a := []string{"a.com", "b.com"}
	b := []string{"b.com", "c.com", "d.com"}

	set := NewDomainSet(a...)
	set.Merge(set.Diff(b))

	want := []string{"a.com", "b.com", "c.com", "d.com"}
	if got := set.Sorted(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sorted() = %v, want %v", got, want)
	}
	if set.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", set.Len())
	}
}

func TestDomainSetAdd(t *testing.T) {
	set := NewDomainSet()
	if !set.Add("a.com") {
		t.Fatal("expected first Add to report new domain")
	}
	if set.Add("a.com") {
		t.Fatal("expected second Add to report existing domain")
	}
	if !set.Has("a.com") {
		t.Fatal("expected a.com to be present")
	}
}

func TestDomainSetCloneIsIndependent(t *testing.T) {
	set := NewDomainSet("a.com")
	clone := set.Clone()
	clone.Add("b.com")
	if set.Has("b.com") {
		t.Fatal("clone must not share storage with the original")
	}
}
