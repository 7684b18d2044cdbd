package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	hugerr "github.com/qeforge/knowledgehub/internal/errors"
)

const synthesizeQueryPromptTemplate = `You are a senior requirements analyst.

The user wants to test: "%s"

Using the retrieved context below, synthesize a comprehensive representation of ALL requirements and information related to this topic.

CRITICAL INSTRUCTIONS:
- COMPREHENSIVE COVERAGE: Include ALL information related to the user's input, even tangentially related details.
- PRESERVE SPECIFICS: Do not omit specific names, error messages, usernames, endpoint URLs, or header names.
- NO HALLUCINATION: Use only the provided context. If a detail is missing, do not invent it.
- STRUCTURED OUTPUT: Organize the information clearly with appropriate headings.
- SUPPORT TEST CREATION: Include all details that would help create thorough test cases.
- MACHINE READABLE TRACE: At the very end of your response, provide a JSON block enclosed in ` + "```json ... ```" + ` that maps each requirement to its source document and specifies if it is an 'Authoritative Spec' or 'Narrative'.

Retrieved Context:
%s

Comprehensive Requirements Related to "%s":`

const synthesizeAllPromptTemplate = `You are a senior requirements analyst.

Using the retrieved context below, synthesize a comprehensive, structured representation of the system requirements.

CRITICAL INSTRUCTIONS:
- IDENTIFY ALL MODULES: If the context covers multiple areas (e.g., UI Overview and Technical API), ensure BOTH are represented.
- PRESERVE SPECIFICS: Do not omit specific names, error messages, usernames, endpoint URLs, or header names.
- NO HALLUCINATION: Use only the provided context. If a detail is missing, do not invent it.
- STRUCTURED OUTPUT: Use the following format:

SYSTEM IDENTITIES & OVERVIEW
(List product names and high-level purpose)

FUNCTIONAL REQUIREMENTS
(Grouped by feature or component. Include specific business logic.)

TECHNICAL SPECIFICATIONS & API DETAILS
(List endpoints, headers, and request/response structures found in the context)

NON-FUNCTIONAL REQUIREMENTS
(Performance, Security, etc.)

CONSTRAINTS & ASSUMPTIONS

Context:
%s

Comprehensive Requirements Synthesis:`

// SynthesizeQuery retrieves context for the query and synthesizes a
// structured requirements digest from it. When retrieval produces one of
// the sentinel "nothing to search" messages, that message is returned
// unchanged.
func (e *Engine) SynthesizeQuery(ctx context.Context, selection []string, query string) (string, *Diagnostics, error) {
	contextText, diag, err := e.RetrieveContext(ctx, selection, query)
	if err != nil {
		return "", diag, err
	}
	if diag.Stats.Returned == 0 {
		return contextText, diag, nil
	}

	prompt := fmt.Sprintf(synthesizeQueryPromptTemplate, query, contextText, query)
	answer, err := e.completer.Complete(ctx, prompt, "")
	if err != nil {
		return "", diag, hugerr.Wrap(err, hugerr.ErrCodeCompletionFailed,
			"synthesizing requirements", hugerr.StageSynthesize)
	}

	return answer, diag, nil
}

// SynthesizeAll synthesizes a digest of every indexed segment in the
// selection, without similarity search.
func (e *Engine) SynthesizeAll(ctx context.Context, selection []string) (string, *Diagnostics, error) {
	if selection != nil && len(selection) == 0 {
		return MsgNoDocumentsSelected, &Diagnostics{}, nil
	}

	res, diag, err := e.OpenIndex(ctx, selection)
	if err != nil {
		return "", diag, err
	}
	defer res.Index.Close()

	if res.EmptyIndex {
		return MsgNoDocumentation, diag, nil
	}

	segments := res.Index.Segments()
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].Source != segments[j].Source {
			return segments[i].Source < segments[j].Source
		}
		return segments[i].Text < segments[j].Text
	})

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	prompt := fmt.Sprintf(synthesizeAllPromptTemplate, strings.Join(texts, "\n\n"))
	answer, err := e.completer.Complete(ctx, prompt, "")
	if err != nil {
		return "", diag, hugerr.Wrap(err, hugerr.ErrCodeCompletionFailed,
			"synthesizing requirements", hugerr.StageSynthesize)
	}

	return answer, diag, nil
}
