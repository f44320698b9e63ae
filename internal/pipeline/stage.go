package pipeline

import (
	"context"
	"errors"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/storage"
)

// ParseStage maps a stage name to a Stage.
func ParseStage(name string) (Stage, bool) {
	for _, s := range Order {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// RunStage runs a single stage for a client, loading the earlier stages'
// results from the store. Every stage except intake and chat needs a stored
// intake profile; intake continues from the stored profile when one exists.
// input is only used by the chat stage.
func (r *Runner) RunStage(ctx context.Context, clientID string, stage Stage, input string) State {
	st := State{ClientID: clientID}
	log := r.logger.With("client_id", clientID, "stage", stage)

	doc, err := storage.Get(r.store, storage.IntakeProfiles, clientID)
	switch {
	case err == nil:
		st.Profile = doc
	case errors.Is(err, storage.ErrNotFound):
		if stage != StageIntake && stage != StageChat {
			st.fail("No intake profile for %s: run the intake first.", clientID)
			return st
		}
	default:
		st.fail("Loading profile failed: %v", err)
		return st
	}

	var ok bool
	if st.Advisor, ok = r.optional(&st, storage.AdvisorResults); !ok {
		return st
	}
	if st.Scholarships, ok = r.optional(&st, storage.ScholarshipRecommendations); !ok {
		return st
	}

	log.Info("running single stage")
	switch stage {
	case StageIntake:
		r.runIntake(ctx, &st)
	case StageAdvisor:
		r.runAdvisor(ctx, &st)
	case StageCVReview:
		r.runCVReview(ctx, &st)
	case StageScholarships:
		r.runScholarships(ctx, &st)
	case StagePrep:
		r.runPrep(ctx, &st)
	case StageChat:
		r.runChat(ctx, &st, input)
	default:
		st.fail("Unknown stage %q.", stage)
	}
	if st.Err != "" {
		log.Warn("stage halted", "error", st.Err)
	}
	return st
}

// optional loads the client's entry in store; a missing or unreadable entry
// is nil.
func (r *Runner) optional(st *State, store string) (document.Document, bool) {
	doc, err := storage.Get(r.store, store, st.ClientID)
	switch {
	case err == nil:
		return doc, true
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrMalformed):
		return nil, true
	}
	st.fail("Loading %s failed: %v", store, err)
	return nil, false
}
