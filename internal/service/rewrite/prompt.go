package rewrite

import (
	"fmt"
	"strings"

	"rephrasego/internal/models"
)

var modeDirectives = map[models.Mode]string{
	models.ModeAcademic: "Rewrite the text in a scholarly academic register: precise terminology, objective tone, well-structured argumentation and formal transitions suitable for a peer-reviewed paper.",
	models.ModeFormal:   "Rewrite the text in a formal professional register: polished, courteous and unambiguous, free of slang and contractions, suitable for business correspondence.",
	models.ModeCreative: "Rewrite the text creatively: vivid word choice, varied sentence structure and an engaging narrative voice while keeping the original meaning.",
	models.ModeSEO:      "Rewrite the text for search engine optimization: clear scannable sentences, natural use of the key terms already present, active voice and strong readability without keyword stuffing.",
	models.ModeSimplify: "Rewrite the text in plain, simple language: short sentences, common words and a clear structure that a general reader can follow easily.",
}

// Directive returns the fixed style directive for mode.
func Directive(mode models.Mode) string {
	return modeDirectives[mode]
}

// BuildInstruction composes the system instruction sent to the oracle.
// req must already be validated.
func BuildInstruction(req Request) string {
	var b strings.Builder
	b.WriteString("You are an expert paraphrasing assistant.\n")
	b.WriteString(Directive(req.Mode))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Write the rewritten text in %s.\n", req.Language)
	fmt.Fprintf(&b, "Preserve every in-text citation verbatim in %s format; never alter, drop or invent citations, authors, years or page numbers.\n", req.CitationFormat)
	if req.StyleMatching {
		b.WriteString("Match the author's original voice: keep their sentence rhythm, vocabulary level and personal style while applying the requested style.\n")
	}
	b.WriteString("Keep the original meaning and do not add new facts.\n\n")
	b.WriteString("Return the result through the submit_rewrite function (or as a single JSON object with the same shape) containing:\n")
	b.WriteString("- rewrittenText: the full rewritten passage;\n")
	b.WriteString("- changes: every phrase-level change, each with original (phrase from the input), paraphrased (the replacement exactly as it appears in rewrittenText), kind (one of synonym, grammar, tone), startIndex and endIndex (character offsets of paraphrased inside rewrittenText).\n")
	b.WriteString("Do not return anything except that structured payload.")
	return b.String()
}
