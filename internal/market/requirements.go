package market

import (
	"fmt"
	"strings"
)

// CheckRequirements returns a *RequirementError naming the first unmet
// requirement: tags first, then level, experience and playtime.
func CheckRequirements(actor Actor, req Requirements) error {
	for _, tag := range req.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !actor.HasTag(tag) {
			return &RequirementError{Reason: "missing permission " + tag}
		}
	}
	if req.MinLevel > 0 && actor.Level() < req.MinLevel {
		return &RequirementError{Reason: fmt.Sprintf("requires level %d", req.MinLevel)}
	}
	if req.MinExperience > 0 && actor.Experience() < req.MinExperience {
		return &RequirementError{Reason: fmt.Sprintf("requires %d experience", req.MinExperience)}
	}
	if req.MinPlaytime > 0 && actor.Playtime() < req.MinPlaytime {
		return &RequirementError{Reason: fmt.Sprintf("requires %s playtime", req.MinPlaytime)}
	}
	return nil
}
