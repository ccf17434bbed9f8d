// Package dialogflowagent implements webhook fulfillment for Dialogflow
// agents. It decodes webhook requests, manages conversation contexts with
// typed parameters, dispatches each turn to an intent handler and renders
// the webhook response.
//
// Responsibilities
//   - Intent dispatch (one handler per intent display name)
//   - Context lifecycle (registration, default synthesis, keep-around
//     lifespan resets, typed de/serialization via contexts and jsonbind)
//   - Integration conversations (per-platform payload handling)
//   - Response construction (text, quick replies, cards, images, followup
//     events, templates)
//
// Quick start:
//
//	type GameState struct {
//	    QuestionsAnswered int     `json:"questions_answered"`
//	    LastAnswer        *string `json:"last_answer,omitempty"`
//	}
//
//	agent, err := dialogflowagent.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = dialogflowagent.RegisterContext[GameState](
//	    agent, "game_state", contexts.KeepAround(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	agent.HandleIntent("CorrectAnswer", func(ctx context.Context, conv *dialogflowagent.Conversation) error {
//	    state, err := contexts.ParamsOf[GameState](conv.Contexts(), "game_state")
//	    if err != nil {
//	        return err
//	    }
//	    state.QuestionsAnswered++
//	    conv.Ask("Correct! Next question...")
//	    return nil
//	})
//
//	http.ListenAndServe(":8080", agent.Handler())
//
// The agent and its registries are configured once at startup and are then
// read-only during traffic. Each request gets its own Conversation and
// contexts.Manager; handlers never share per-turn state.
package dialogflowagent
