//go:build !integration

package usecase

import (
	"reflect"
	"testing"

	"telegram-storefront-bot/internal/domain/model"
)

func TestRecallSet(t *testing.T) {
	s := newRecallSet()
	for id := int64(1); id <= 4; id++ {
		s.add(model.RecallEntry{ChatID: id, MessageID: int(id) * 10})
	}
	s.add(model.RecallEntry{ChatID: 2, MessageID: 99})
	s.remove(3)
	s.remove(3)
	s.remove(42)

	want := []model.RecallEntry{{ChatID: 1, MessageID: 10}, {ChatID: 2, MessageID: 99}, {ChatID: 4, MessageID: 40}}
	if got := s.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
	if s.len() != 3 {
		t.Fatalf("len = %d, want 3", s.len())
	}

	for _, e := range want {
		s.remove(e.ChatID)
	}
	if s.len() != 0 || len(s.snapshot()) != 0 || len(s.entries) != 0 {
		t.Fatalf("set not empty after removing everything: %+v", s.entries)
	}

	s.add(model.RecallEntry{ChatID: 3, MessageID: 1})
	if got := s.snapshot(); len(got) != 1 || got[0].ChatID != 3 {
		t.Fatalf("snapshot after reuse = %+v", got)
	}
}

func TestRecallSetRemovalIsLinear(t *testing.T) {
	const n = 200000
	s := newRecallSet()
	for i := 0; i < n; i++ {
		s.add(model.RecallEntry{ChatID: int64(i), MessageID: i})
	}
	for _, e := range s.snapshot() {
		s.remove(e.ChatID)
	}
	if s.len() != 0 {
		t.Fatalf("len = %d after draining", s.len())
	}
}
