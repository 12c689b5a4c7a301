package actions

import (
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// registerLearning adds the four skill-acquisition actions (spec.md §4.3).
// Each differs only in the SkillSource it records and, for
// learn_from_experience, an extra outcome/experience narrative folded into
// the guidance text.
func registerLearning(r *Registry) {
	r.Register(Action{
		Name:        "learn_from_experience",
		Description: "Create a new skill distilled from something the agent just experienced.",
		Parameters:  learningSchema("experience", "outcome"),
		Handler:     handlerForSource(store.SkillAcquiredViaExperience),
	})
	r.Register(Action{
		Name:        "learn_from_peer",
		Description: "Create a new skill distilled from guidance received from a peer agent.",
		Parameters:  learningSchema("experience", "outcome"),
		Handler:     handlerForSource(store.SkillAcquiredViaPeer),
	})
	r.Register(Action{
		Name:        "reflect_and_learn",
		Description: "Create a new skill distilled from reflecting on past sessions.",
		Parameters:  learningSchema("experience", "outcome"),
		Handler:     handlerForSource(store.SkillAcquiredViaReflection),
	})
	r.Register(Action{
		Name:        "create_my_skill",
		Description: "Explicitly create a new skill without an originating experience.",
		Parameters:  objectSchema(map[string]any{
			"skill_name":        stringProp("short skill identifier"),
			"situation_pattern": stringProp("when this skill applies"),
			"guidance":          stringProp("guidance text shown to the model while active"),
			"actions":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "action names this skill permits"},
		}, "skill_name", "guidance"),
		Handler: handleCreateMySkill,
	})
}

func learningSchema(extraFields ...string) map[string]any {
	props := map[string]any{
		"skill_name":        stringProp("short skill identifier"),
		"situation_pattern": stringProp("when this skill applies"),
		"guidance":          stringProp("guidance text shown to the model while active"),
		"lesson":            stringProp("the lesson learned, folded into guidance"),
		"actions":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "action names this skill permits"},
	}
	for _, f := range extraFields {
		props[f] = stringProp(f)
	}
	return objectSchema(props, "skill_name", "guidance")
}

func handlerForSource(source store.SkillSource) Handler {
	return func(rc *RunContext, args map[string]any) (Result, error) {
		guidance := argString(args, "guidance")
		if lesson := argString(args, "lesson"); lesson != "" {
			guidance = guidance + "\n\nLesson: " + lesson
		}
		skill, err := rc.Skills.Acquire(rc.AgentID, acquiredFromArgs(args, guidance, source))
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]any{"skill_id": skill.ID, "name": skill.Name}}, nil
	}
}

func handleCreateMySkill(rc *RunContext, args map[string]any) (Result, error) {
	skill, err := rc.Skills.Acquire(rc.AgentID, acquiredFromArgs(args, argString(args, "guidance"), store.SkillAcquiredViaCreation))
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"skill_id": skill.ID, "name": skill.Name}}, nil
}

func acquiredFromArgs(args map[string]any, guidance string, source store.SkillSource) skills.AcquiredSkill {
	return skills.AcquiredSkill{
		Name:             argString(args, "skill_name"),
		SituationPattern: argString(args, "situation_pattern"),
		Guidance:         guidance,
		Actions:          argStringSlice(args, "actions"),
		Source:           source,
	}
}
