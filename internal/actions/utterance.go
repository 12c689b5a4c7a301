package actions

import (
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// registerUtterance adds the send_speech/send_noreact/declare_done/
// generate_inner_voice/broadcast_guidance group (spec.md §4.3). Only
// generate_inner_voice is non-terminal; the other four make up the
// terminal set from spec.md §4.1.
func registerUtterance(r *Registry) {
	r.Register(Action{
		Name:        "send_speech",
		Description: "Send a spoken reply to the user and end this turn.",
		Parameters:  objectSchema(map[string]any{"content": stringProp("the reply text")}, "content"),
		Terminal:    true,
		Handler:     handleSendSpeech,
	})
	r.Register(Action{
		Name:        "send_noreact",
		Description: "End this turn without producing a visible reply.",
		Parameters:  objectSchema(map[string]any{}),
		Terminal:    true,
		Handler:     handleSendNoreact,
	})
	r.Register(Action{
		Name:        "declare_done",
		Description: "Mark this participant done for the current session phase and end this turn.",
		Parameters:  objectSchema(map[string]any{}),
		Terminal:    true,
		Handler:     handleDeclareDone,
	})
	r.Register(Action{
		Name:        "broadcast_guidance",
		Description: "Send a reply to every participant in the session and end this turn.",
		Parameters:  objectSchema(map[string]any{"content": stringProp("the guidance text")}, "content"),
		Terminal:    true,
		Handler:     handleBroadcastGuidance,
	})
	r.Register(Action{
		Name:        "generate_inner_voice",
		Description: "Record an internal thought without ending this turn.",
		Parameters:  objectSchema(map[string]any{"content": stringProp("the thought text")}, "content"),
		Terminal:    false,
		Handler:     handleInnerVoice,
	})
}

func handleSendSpeech(rc *RunContext, args map[string]any) (Result, error) {
	content := argString(args, "content")
	if _, err := logUtterance(rc, content); err != nil {
		return Result{}, err
	}
	appendOutgoing(rc, messages.OutgoingMessage{Content: content, Target: replyTarget(rc)})
	return Result{Success: true, Data: map[string]any{"sent": true}}, nil
}

func handleSendNoreact(rc *RunContext, args map[string]any) (Result, error) {
	if _, err := rc.Memory.AppendLog(store.SessionLog{
		AgentID: rc.AgentID, SessionID: rc.SessionID, Kind: store.LogSystem,
		SpeakerID: rc.AgentID, TurnNumber: rc.TurnNumber, Content: "(no reaction)",
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"reacted": false}}, nil
}

func handleDeclareDone(rc *RunContext, args map[string]any) (Result, error) {
	count, err := rc.DB.RecordDone(rc.SessionID)
	if err != nil {
		return Result{}, err
	}
	if _, err := rc.Memory.AppendLog(store.SessionLog{
		AgentID: rc.AgentID, SessionID: rc.SessionID, Kind: store.LogSystem,
		SpeakerID: rc.AgentID, TurnNumber: rc.TurnNumber, Content: "declared done",
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"done_count": count}}, nil
}

func handleBroadcastGuidance(rc *RunContext, args map[string]any) (Result, error) {
	content := argString(args, "content")
	if _, err := logUtterance(rc, content); err != nil {
		return Result{}, err
	}
	appendOutgoing(rc, messages.OutgoingMessage{Content: content, Target: "broadcast"})
	return Result{Success: true, Data: map[string]any{"sent": true}}, nil
}

func handleInnerVoice(rc *RunContext, args map[string]any) (Result, error) {
	content := argString(args, "content")
	if _, err := rc.Memory.AppendLog(store.SessionLog{
		AgentID: rc.AgentID, SessionID: rc.SessionID, Kind: store.LogInnerVoice,
		SpeakerID: rc.AgentID, TurnNumber: rc.TurnNumber, Content: content,
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"logged": true}}, nil
}

func logUtterance(rc *RunContext, content string) (store.SessionLog, error) {
	return rc.Memory.AppendLog(store.SessionLog{
		AgentID: rc.AgentID, SessionID: rc.SessionID, Kind: store.LogUtterance,
		SpeakerID: rc.AgentID, TurnNumber: rc.TurnNumber, Content: content,
	})
}

func appendOutgoing(rc *RunContext, m messages.OutgoingMessage) {
	if rc.Outgoing == nil {
		return
	}
	*rc.Outgoing = append(*rc.Outgoing, m)
}

func replyTarget(rc *RunContext) string {
	if rc.SpeakerID != "" {
		return "dm(" + rc.SpeakerID + ")"
	}
	return "channel(" + rc.SessionID + ")"
}
