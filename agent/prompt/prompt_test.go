package prompt

import (
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

var testNow = time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

func TestSystemMessageInterpolation(t *testing.T) {
	t.Parallel()

	got := SystemMessage("Carlos Silva", nil, "Ana", "5511987654321", testNow, "", true)

	for _, want := range []string{
		"corretor de imóveis Carlos Silva",
		"O nome do usuário é Ana",
		"o telefone é 5511987654321",
		"2024-06-01T15:04:05Z",
		"100%",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("system message missing %q", want)
		}
	}
	if strings.Contains(got, "IMPORTANTE: Não solicite") {
		t.Fatal("calendar clause must be absent when calendarUse is true")
	}
}

func TestSystemMessageBlockOrdering(t *testing.T) {
	t.Parallel()

	answers := []contractx.SurveyAnswer{
		{Question: "Quartos", Answer: "3"},
		{Question: "Reformas recentes", Answer: "cozinha"},
		{Question: "Planos de venda", Answer: "talvez"},
	}
	got := SystemMessage("Carlos", answers, "Ana", "5511987654321", testNow, "Nunca ofereça descontos.", false)

	calendarIdx := strings.Index(got, "IMPORTANTE: Não solicite")
	customIdx := strings.Index(got, "INSTRUÇÕES PERSONALIZADAS DO CORRETOR")
	surveyIdx := strings.Index(got, "Estas são as informações fornecidas pelo usuário")

	if calendarIdx < 0 || customIdx < 0 || surveyIdx < 0 {
		t.Fatalf("missing block: calendar=%d custom=%d survey=%d", calendarIdx, customIdx, surveyIdx)
	}
	if !(calendarIdx < customIdx && customIdx < surveyIdx) {
		t.Fatalf("blocks out of order: calendar=%d custom=%d survey=%d", calendarIdx, customIdx, surveyIdx)
	}
	if !strings.Contains(got, "Quartos: 3") || !strings.Contains(got, "Reformas recentes: cozinha") {
		t.Fatal("survey answers not rendered one per line")
	}
	if !strings.Contains(got, "Nunca ofereça descontos.") {
		t.Fatal("custom prompt text missing")
	}
}

func TestSystemMessageDeterministic(t *testing.T) {
	t.Parallel()

	a := SystemMessage("Carlos", nil, "Ana", "5511987654321", testNow, "", true)
	b := SystemMessage("Carlos", nil, "Ana", "5511987654321", testNow, "", true)
	if a != b {
		t.Fatal("prompt builder must be deterministic given identical inputs")
	}
}

func TestSystemMessageFallbackRealtorName(t *testing.T) {
	t.Parallel()

	got := SystemMessage("  ", nil, "", "5511987654321", testNow, "", true)
	if !strings.Contains(got, "corretor de imóveis "+DefaultRealtorName) {
		t.Fatal("expected fallback realtor name")
	}
}

func TestSearchSystemMessage(t *testing.T) {
	t.Parallel()

	if SearchSystemMessage() == "" {
		t.Fatal("search system message must not be empty")
	}
}
