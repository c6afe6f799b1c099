package dsa

import (
	"reflect"
	"testing"
)

func TestTrieInsertSearchDelete(t *testing.T) {
	trie := NewTrie[int]()
	trie.Insert("20251018T120000_session-aaa", 1)
	trie.Insert("20251018T120000_session-bbb", 2)
	trie.Insert("20251018T120000_session-aaa", 3)

	if got := trie.StartsWith("", 0); len(got) != 2 {
		t.Fatalf("expected 2 keys, got %v", got)
	}
	if v, ok := trie.Search("20251018T120000_session-aaa"); !ok || v != 3 {
		t.Errorf("expected replaced value 3, got %d (found=%v)", v, ok)
	}
	if !trie.Delete("20251018T120000_session-aaa") {
		t.Error("expected delete to report found")
	}
	if trie.Delete("missing") {
		t.Error("expected delete of missing key to report false")
	}
	if _, ok := trie.Search("20251018T120000_session-aaa"); ok {
		t.Error("expected deleted key to be gone")
	}
}

func TestTrieStartsWith(t *testing.T) {
	trie := NewTrie[struct{}]()
	for _, k := range []string{"beta", "alpha-2", "alpha-1", "gamma"} {
		trie.Insert(k, struct{}{})
	}

	if got := trie.StartsWith("alpha", 0); !reflect.DeepEqual(got, []string{"alpha-1", "alpha-2"}) {
		t.Errorf("unexpected matches %v", got)
	}
	if got := trie.StartsWith("", 2); len(got) != 2 {
		t.Errorf("expected limit to cap results, got %v", got)
	}
	if got := trie.StartsWith("zeta", 0); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}
