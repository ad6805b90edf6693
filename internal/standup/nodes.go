package standup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dailysync/standup-bot/internal/llm"
	"github.com/dailysync/standup-bot/pkg/convograph"
)

// Generator is the slice of the generation gateway the nodes need.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Nodes bundles the step implementations with their collaborators.
type Nodes struct {
	gen    Generator
	source ActivitySource
}

// NewNodes wires the step implementations. source may be nil, in which
// case no activities are pre-fetched and the draft is built from the
// conversation alone.
func NewNodes(gen Generator, source ActivitySource) *Nodes {
	if source == nil {
		source = StaticSource{}
	}
	return &Nodes{gen: gen, source: source}
}

// Initialize marks the conversation started.
func (n *Nodes) Initialize(_ convograph.Context, s State) (State, error) {
	s.NextStep = StepFetchActivities
	return s, nil
}

// FetchActivities pulls and normalizes the raw facts for the draft.
func (n *Nodes) FetchActivities(ctx convograph.Context, s State) (State, error) {
	acts, err := n.source.Fetch(ctx, s.UserInfo)
	if err != nil {
		return s, fmt.Errorf("fetch activities: %w", err)
	}
	s.Activities = normalizeActivities(acts)
	s.NextStep = StepGenerateDraft
	return s, nil
}

// GenerateDraft produces the initial structured draft from the activities
// and the conversation so far.
func (n *Nodes) GenerateDraft(ctx convograph.Context, s State) (State, error) {
	actsJSON, _ := json.MarshalIndent(s.Activities, "", "  ")

	history := append([]llm.Message(nil), s.Messages...)
	history = append(history, llm.UserMessage(
		fmt.Sprintf("Activities:\n%s\n\nGenerate a draft standup update.", actsJSON)))

	out, err := n.gen.Generate(ctx, llm.Request{
		System:   draftSystemPrompt,
		Messages: history,
	})
	if err != nil {
		return s, err
	}

	draft, perr := decodeDraft(out)
	if perr != nil {
		ctx.Logger().Warn("draft output unparsable, using activity skeleton", "error", perr)
		draft = draftFromActivities(s.Activities)
	}

	s.CurrentDraft = draft
	s.NextStep = StepAnalyzeDraft
	return s, nil
}

// AnalyzeDraft reviews the draft for completeness. If clarification is
// needed it appends the questions as one assistant message and routes to
// ask_followup; otherwise it routes to finalize. Unparsable analysis
// degrades to finalize - a review we cannot read must not stall the user.
func (n *Nodes) AnalyzeDraft(ctx convograph.Context, s State) (State, error) {
	draftJSON, _ := json.MarshalIndent(s.CurrentDraft, "", "  ")

	out, err := n.gen.Generate(ctx, llm.Request{
		System: analysisSystemPrompt,
		Messages: []llm.Message{
			llm.UserMessage(fmt.Sprintf("Draft:\n%s\n\nAnalyze this draft for completeness and clarity.", draftJSON)),
		},
	})
	if err != nil {
		return s, err
	}

	a, perr := decodeAnalysis(out)
	if perr != nil {
		ctx.Logger().Warn("analysis output unparsable, finalizing draft", "error", perr)
		s.NextStep = StepFinalize
		return s, nil
	}

	if a.NeedsClarification && len(a.Questions) > 0 {
		s = s.AppendAssistant(strings.Join(a.Questions, "\n"))
		s.NextStep = StepAskFollowup
		return s, nil
	}

	s.NextStep = StepFinalize
	return s, nil
}

// AskFollowup merges the user's latest answers into the draft, then loops
// back to analysis. An unparsable update keeps the prior draft.
func (n *Nodes) AskFollowup(ctx convograph.Context, s State) (State, error) {
	draftJSON, _ := json.MarshalIndent(s.CurrentDraft, "", "  ")

	history := append([]llm.Message(nil), s.Messages...)
	history = append(history, llm.UserMessage(
		fmt.Sprintf("Current draft:\n%s\n\nUpdate the draft based on the conversation history.", draftJSON)))

	out, err := n.gen.Generate(ctx, llm.Request{
		System:   followupSystemPrompt,
		Messages: history,
	})
	if err != nil {
		return s, err
	}

	if draft, perr := decodeDraft(out); perr == nil {
		s.CurrentDraft = draft
	} else {
		ctx.Logger().Warn("follow-up output unparsable, keeping prior draft", "error", perr)
	}

	s.NextStep = StepAnalyzeDraft
	return s, nil
}

// Finalize renders the final update and appends it as the closing
// assistant message. The section structure is built locally so it is
// stable regardless of what the model returns for the opener.
func (n *Nodes) Finalize(ctx convograph.Context, s State) (State, error) {
	draftJSON, _ := json.MarshalIndent(s.CurrentDraft, "", "  ")

	opener, err := n.gen.Generate(ctx, llm.Request{
		System: summarySystemPrompt,
		Messages: []llm.Message{
			llm.UserMessage(fmt.Sprintf("Draft:\n%s\nUser: %s\n\nWrite the opener.", draftJSON, s.UserInfo.DisplayName)),
		},
	})
	if err != nil {
		return s, err
	}

	s = s.AppendAssistant(FormatUpdate(s.UserInfo, s.CurrentDraft, strings.TrimSpace(opener)))
	s.NextStep = convograph.END
	return s, nil
}

// FormatUpdate renders the posted standup message. Section headers and
// order are fixed; only the opener line comes from generation.
func FormatUpdate(user UserInfo, draft Draft, opener string) string {
	var b strings.Builder

	name := user.DisplayName
	if name == "" {
		name = "Update"
	}
	fmt.Fprintf(&b, "*Standup — %s*\n", name)
	if opener != "" {
		b.WriteString(opener)
		b.WriteString("\n")
	}

	writeSection(&b, "Accomplishments", draft.Accomplishments)
	writeSection(&b, "Plans", draft.Plans)
	writeSection(&b, "Blockers", draft.Blockers)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, items []string) {
	b.WriteString("\n*")
	b.WriteString(title)
	b.WriteString("*\n")
	if len(items) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
