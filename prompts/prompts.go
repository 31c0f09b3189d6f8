package prompts

import (
	_ "embed"
	"strings"
)

// Embedded prompt files

//go:embed query_synthesis.txt
var querySynthesis string

//go:embed answer_summary.txt
var answerSummary string

//go:embed small_talk.txt
var smallTalk string

//go:embed order_extraction.txt
var orderExtraction string

func QuerySynthesis() string  { return querySynthesis }
func AnswerSummary() string   { return answerSummary }
func SmallTalk() string       { return smallTalk }
func OrderExtraction() string { return orderExtraction }

// Render substitutes {{key}} placeholders in tmpl. Unknown placeholders are
// left in place.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
