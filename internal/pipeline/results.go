package pipeline

import (
	"errors"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/prep"
	"github.com/kalambet/collegeai/internal/scholarships"
	"github.com/kalambet/collegeai/internal/storage"
	"github.com/kalambet/collegeai/internal/turn"
)

// MergedProfile overlays the client's scholarships sub-profile on a copy of
// intakeProfile. A missing or unreadable sub-profile counts as empty.
func MergedProfile(s storage.DocumentStore, clientID string, intakeProfile document.Document) (document.Document, error) {
	sub, err := storage.Get(s, storage.ScholarshipsProfiles, clientID)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrMalformed):
		sub = document.Document{}
	case err != nil:
		return nil, err
	}
	return document.DeepMerge(document.Clone(intakeProfile), sub), nil
}

// ScholarshipsResult is the stored form of a RECOMMEND turn.
func ScholarshipsResult(res scholarships.Result) map[string]any {
	recs := []scholarships.Scholarship{}
	if res.Payload != nil {
		recs = res.Payload.Recommendations
	}
	return map[string]any{
		"recommendations": recs,
		"note_to_user":    res.NoteToUser,
	}
}

// PrepResult is the stored form of a finished prep turn. It reports false
// for actions that keep the conversation going.
func PrepResult(res prep.Result) (map[string]any, bool) {
	switch res.Action {
	case turn.ActionSuggest:
		out := map[string]any{"summary": nil, "suggestions": []prep.Suggestion{}}
		if res.Payload != nil {
			out["summary"] = res.Payload.Summary
			out["suggestions"] = res.Payload.Suggestions
		}
		return out, true
	case turn.ActionEnd:
		return map[string]any{"summary": res.NoteToUser, "suggestions": []prep.Suggestion{}}, true
	}
	return nil, false
}
