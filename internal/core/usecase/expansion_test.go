package usecase

import (
	"testing"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

func TestQueryExpanderCapsAndOrdersTerms(t *testing.T) {
	e := NewQueryExpander(testVocabulary())

	got := e.LegalTerms("집주인이 보증금을 안 줘서 소송하려고요")
	want := []string{"임대차보증금", "전세금", "임대인"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("term %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestQueryExpanderSkipsTermsAlreadyPresent(t *testing.T) {
	e := NewQueryExpander(testVocabulary())

	got := e.ExpandLegal("전세사기 피해")
	if got != "전세사기 피해 임대차사기 보증금사기" {
		t.Fatalf("unexpected expansion %q", got)
	}
	if plain := e.ExpandLegal("계약 해지"); plain != "계약 해지" {
		t.Fatalf("expected no expansion, got %q", plain)
	}
}

func TestQueryExpanderEnhanceNews(t *testing.T) {
	e := NewQueryExpander(testVocabulary())

	if got := e.EnhanceNews("부동산 경매 절차"); got != "부동산 경매 절차 전세사기" {
		t.Fatalf("expected qualifier appended, got %q", got)
	}
	if got := e.EnhanceNews("차임 연체"); got != "차임 연체" {
		t.Fatalf("expected query unchanged, got %q", got)
	}
}

func TestLongContextReorderPlacesBestAtEnds(t *testing.T) {
	docs := make([]domain.Document, 0, 6)
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		docs = append(docs, domain.Document{ID: id})
	}

	got := longContextReorder(docs)
	want := []string{"2", "4", "6", "5", "3", "1"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: got %s want %s (full=%v)", i, got[i].ID, want[i], got)
		}
	}
	if docs[0].ID != "1" {
		t.Fatalf("input must not be modified")
	}
}
