// Package prompt assembles the system instruction sent to the model.
//
// The builder is a pure function: wall-clock time is passed in, never read
// here. Block order is significant — base instructions, then the
// no-calendar clause, then the realtor's custom override, then survey
// answers — because later blocks carry higher instruction precedence.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

//go:embed template/system.txt
var systemRaw string

const (
	DefaultRealtorName = "o corretor"

	noCalendarClause = "\n\nIMPORTANTE: Não solicite nem sugira datas ou horários específicos. Se o usuário pedir para agendar, informe que o corretor marcará a data diretamente com ele."

	customPromptHeader = "\n\nINSTRUÇÕES PERSONALIZADAS DO CORRETOR (SIGA EXTREMAMENTE À RISCA):\n"

	surveyHeader = "\n\nEstas são as informações fornecidas pelo usuário:"
)

// SystemMessage builds the system instruction for one loop iteration.
func SystemMessage(
	realtorName string,
	answers []contractx.SurveyAnswer,
	leadName string,
	phone string,
	now time.Time,
	customPrompt string,
	calendarUse bool,
) string {
	if strings.TrimSpace(realtorName) == "" {
		realtorName = DefaultRealtorName
	}

	var b strings.Builder
	fmt.Fprintf(&b, strings.TrimSpace(systemRaw),
		realtorName, leadName, phone, now.UTC().Format(time.RFC3339))

	if !calendarUse {
		b.WriteString(noCalendarClause)
	}
	if customPrompt != "" {
		b.WriteString(customPromptHeader)
		b.WriteString(customPrompt)
	}
	if len(answers) > 0 {
		b.WriteString(surveyHeader)
		for _, a := range answers {
			fmt.Fprintf(&b, "\n\n%s: %s", a.Question, a.Answer)
		}
	}
	return b.String()
}

// SearchSystemMessage is the minimal instruction for the search model.
func SearchSystemMessage() string {
	return "Forneça um resumo das informações fornecidas."
}
