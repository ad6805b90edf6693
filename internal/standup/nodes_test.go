package standup

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailysync/standup-bot/internal/llm"
	"github.com/dailysync/standup-bot/pkg/convograph"
)

// scriptedGenerator returns canned outputs in call order.
type scriptedGenerator struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.outputs) {
		return g.outputs[i], nil
	}
	return "", nil
}

var testUser = UserInfo{ID: "U123", DisplayName: "Jordan"}

const (
	draftJSON = `{"accomplishments":["shipped the importer"],"plans":["start on exports"],"blockers":[]}`
	cleanJSON = `{"needs_clarification":false,"questions":[]}`
)

func testCtx() convograph.Context {
	return convograph.NewContext(context.Background())
}

// runOpts are the options the dispatcher uses in production.
func runOpts() []convograph.RunOption {
	return []convograph.RunOption{
		convograph.WithMaxSteps(25),
		convograph.WithInterruptBefore(StepAskFollowup),
	}
}

// TestConversation_NoClarificationNeeded tests the straight-through flow:
// draft generated, analysis clean, update finalized in one run.
func TestConversation_NoClarificationNeeded(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		draftJSON,
		cleanJSON,
		"Good morning team!",
	}}
	graph, err := BuildGraph(NewNodes(gen, StaticSource{}))
	require.NoError(t, err)

	res, err := graph.Run(testCtx(), NewState(testUser), runOpts()...)

	require.NoError(t, err)
	assert.False(t, res.Interrupted)
	assert.Equal(t, convograph.END, res.NextNode)

	final, ok := res.State.LastAssistant()
	require.True(t, ok)
	assert.Contains(t, final, "*Standup — Jordan*")
	assert.Contains(t, final, "Good morning team!")
	assert.Contains(t, final, "- shipped the importer")
	assert.Contains(t, final, "- start on exports")
	assert.Equal(t, 3, gen.calls)
}

// TestConversation_ClarificationRound tests the pause-ask-resume loop: the
// analysis asks questions, the run pauses before ask_followup, the user's
// answer is merged, and the second analysis pass finalizes.
func TestConversation_ClarificationRound(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		draftJSON,
		`{"needs_clarification":true,"questions":["What is blocking the exports?","When do you expect the importer rollout?"]}`,
		`{"accomplishments":["shipped the importer"],"plans":["start on exports"],"blockers":["waiting on schema sign-off"]}`,
		cleanJSON,
		"Quick update from me:",
	}}
	graph, err := BuildGraph(NewNodes(gen, StaticSource{}))
	require.NoError(t, err)

	paused, err := graph.Run(testCtx(), NewState(testUser), runOpts()...)
	require.NoError(t, err)
	require.True(t, paused.Interrupted)
	assert.Equal(t, StepAskFollowup, paused.NextNode)

	// The questions reach the user as one message, newline separated.
	questions, ok := paused.State.LastAssistant()
	require.True(t, ok)
	assert.Equal(t,
		"What is blocking the exports?\nWhen do you expect the importer rollout?",
		questions)

	state := paused.State.AppendHuman("Schema sign-off is pending, rollout lands Thursday.")
	done, err := graph.RunFrom(testCtx(), state, paused.NextNode, runOpts()...)

	require.NoError(t, err)
	assert.False(t, done.Interrupted)
	assert.Equal(t, []string{"waiting on schema sign-off"}, done.State.CurrentDraft.Blockers)

	final, ok := done.State.LastAssistant()
	require.True(t, ok)
	assert.Contains(t, final, "- waiting on schema sign-off")
	assert.Equal(t, 5, gen.calls)
}

// TestConversation_UnparsableDraftDegrades tests that prose where a draft
// should be falls back to the activity skeleton instead of failing.
func TestConversation_UnparsableDraftDegrades(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		"I'm sorry, I can't produce JSON today.",
		cleanJSON,
		"Here's what I've been up to.",
	}}
	source := StaticSource{Activities: Activities{
		Accomplishments: []string{"merged #42"},
		Plans:           []string{"tackle #43"},
	}}
	graph, err := BuildGraph(NewNodes(gen, source))
	require.NoError(t, err)

	res, err := graph.Run(testCtx(), NewState(testUser), runOpts()...)

	require.NoError(t, err)
	assert.Equal(t, convograph.END, res.NextNode)

	final, ok := res.State.LastAssistant()
	require.True(t, ok)
	assert.Contains(t, final, "- merged #42")
	assert.Contains(t, final, "- tackle #43")
}

// TestAnalyzeDraft_UnparsableFinalizes tests that an unreadable review
// routes to finalize rather than stalling the user.
func TestAnalyzeDraft_UnparsableFinalizes(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"total nonsense"}}
	n := NewNodes(gen, nil)

	s := NewState(testUser)
	s.CurrentDraft = Draft{Accomplishments: []string{"x"}}

	out, err := n.AnalyzeDraft(testCtx(), s)

	require.NoError(t, err)
	assert.Equal(t, StepFinalize, out.NextStep)
	// No questions were appended.
	_, ok := out.LastAssistant()
	assert.False(t, ok)
}

// TestAnalyzeDraft_NeedsClarificationWithoutQuestions tests that a review
// flagging clarification but listing no questions finalizes anyway.
func TestAnalyzeDraft_NeedsClarificationWithoutQuestions(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"needs_clarification":true,"questions":[]}`}}
	n := NewNodes(gen, nil)

	out, err := n.AnalyzeDraft(testCtx(), NewState(testUser))

	require.NoError(t, err)
	assert.Equal(t, StepFinalize, out.NextStep)
}

// TestAskFollowup_UnparsableKeepsPriorDraft tests the merge degrade path.
func TestAskFollowup_UnparsableKeepsPriorDraft(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"not a draft"}}
	n := NewNodes(gen, nil)

	s := NewState(testUser)
	s.CurrentDraft = Draft{Plans: []string{"keep me"}}
	s = s.AppendHuman("some answer")

	out, err := n.AskFollowup(testCtx(), s)

	require.NoError(t, err)
	assert.Equal(t, []string{"keep me"}, out.CurrentDraft.Plans)
	assert.Equal(t, StepAnalyzeDraft, out.NextStep)
}

// TestGenerateDraft_ErrorPropagates tests that gateway failures surface
// unchanged so the run can terminate.
func TestGenerateDraft_ErrorPropagates(t *testing.T) {
	boom := &llm.Error{Kind: llm.KindAuthInvalid, Err: assert.AnError}
	gen := &scriptedGenerator{errs: []error{boom}}
	graph, err := BuildGraph(NewNodes(gen, StaticSource{}))
	require.NoError(t, err)

	_, err = graph.Run(testCtx(), NewState(testUser), runOpts()...)

	require.Error(t, err)
	var genErr *llm.Error
	assert.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1, gen.calls)
}

// TestFormatUpdate tests the fixed section structure.
func TestFormatUpdate(t *testing.T) {
	draft := Draft{
		Accomplishments: []string{"a1", "a2"},
		Plans:           []string{"p1"},
	}

	out := FormatUpdate(testUser, draft, "Morning!")

	lines := strings.Split(out, "\n")
	assert.Equal(t, "*Standup — Jordan*", lines[0])
	assert.Equal(t, "Morning!", lines[1])
	assert.Contains(t, out, "*Accomplishments*\n- a1\n- a2")
	assert.Contains(t, out, "*Plans*\n- p1")
	assert.Contains(t, out, "*Blockers*\n- none")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

// TestFormatUpdate_EmptyDraft tests all-none sections and the name
// fallback.
func TestFormatUpdate_EmptyDraft(t *testing.T) {
	out := FormatUpdate(UserInfo{}, Draft{}, "")

	assert.Contains(t, out, "*Standup — Update*")
	assert.Equal(t, 3, strings.Count(out, "- none"))
}

// TestNewState tests the seeded conversation opener.
func TestNewState(t *testing.T) {
	s := NewState(testUser)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, llm.RoleUser, s.Messages[0].Role)
	assert.Equal(t, StepInitialize, s.NextStep)
	assert.Equal(t, testUser, s.UserInfo)
}

// TestState_AppendDoesNotMutateReceiver tests value semantics under the
// pause/resume pattern, where the paused state may be re-run.
func TestState_AppendDoesNotMutateReceiver(t *testing.T) {
	base := NewState(testUser)
	// Force capacity so a careless append would alias.
	base.Messages = append(make([]llm.Message, 0, 8), base.Messages...)

	a := base.AppendHuman("first")
	_ = base.AppendHuman("second")

	assert.Equal(t, "first", a.Messages[len(a.Messages)-1].Content)
	assert.Len(t, base.Messages, 1)
}
