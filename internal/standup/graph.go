package standup

import (
	"github.com/dailysync/standup-bot/pkg/convograph"
)

// BuildGraph wires the standup conversation graph:
//
//	initialize -> fetch_activities -> generate_draft -> analyze_draft
//	analyze_draft -(needs clarification)-> ask_followup -> analyze_draft
//	analyze_draft -(complete)-> finalize -> END
//
// The caller runs it with convograph.WithInterruptBefore(StepAskFollowup)
// so the conversation pauses for the user's answers before ask_followup
// executes.
func BuildGraph(n *Nodes) (*convograph.CompiledGraph[State], error) {
	return convograph.NewGraph[State]().
		AddNode(StepInitialize, n.Initialize).
		AddNode(StepFetchActivities, n.FetchActivities).
		AddNode(StepGenerateDraft, n.GenerateDraft).
		AddNode(StepAnalyzeDraft, n.AnalyzeDraft).
		AddNode(StepAskFollowup, n.AskFollowup).
		AddNode(StepFinalize, n.Finalize).
		AddEdge(StepInitialize, StepFetchActivities).
		AddEdge(StepFetchActivities, StepGenerateDraft).
		AddEdge(StepGenerateDraft, StepAnalyzeDraft).
		AddEdge(StepAskFollowup, StepAnalyzeDraft).
		AddEdge(StepFinalize, convograph.END).
		AddConditionalEdge(StepAnalyzeDraft, routeAfterAnalysis).
		SetEntry(StepInitialize).
		Compile()
}

// routeAfterAnalysis selects the successor analyze_draft asked for.
// The node contract guarantees NextStep is ask_followup or finalize here;
// anything else is surfaced by the executor as a RouterError.
func routeAfterAnalysis(_ convograph.Context, s State) string {
	return s.NextStep
}
