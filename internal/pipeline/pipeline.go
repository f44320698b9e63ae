// Package pipeline runs the agents for one client in a fixed order:
// intake, advisor, CV review, scholarships, scholarship prep, then chat.
// Returning clients (with a stored intake profile) go straight to chat.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/advisor"
	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/cvreview"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/intake"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/prep"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/scholarships"
	"github.com/kalambet/collegeai/internal/storage"
	"github.com/kalambet/collegeai/internal/turn"
)

const (
	defaultMaxTurns = 12
	maxErrChars     = 160
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageIntake       Stage = "intake"
	StageAdvisor      Stage = "advisor"
	StageCVReview     Stage = "cv_review"
	StageScholarships Stage = "scholarships"
	StagePrep         Stage = "scholarship_prep"
	StageChat         Stage = "general_chat"
)

// Order is the stage order for a new client.
var Order = []Stage{StageIntake, StageAdvisor, StageCVReview, StageScholarships, StagePrep, StageChat}

// ErrCancelled is returned by a Prompter when the user quits.
var ErrCancelled = errors.New("cancelled by user")

// Prompter is the user side of the pipeline.
type Prompter interface {
	// Ask presents q and returns the user's answer.
	Ask(ctx context.Context, stage Stage, q turn.Question) (string, error)
	// Report shows a finished stage result.
	Report(stage Stage, result document.Document)
}

// Agents bundles the stage agents.
type Agents struct {
	Intake       *intake.Agent
	Advisor      *advisor.Agent
	CVReview     *cvreview.Agent
	Scholarships *scholarships.Agent
	Prep         *prep.Agent
	Chat         *chat.Agent
}

// State is the outcome of one Run.
type State struct {
	ClientID     string
	Profile      document.Document
	Advisor      document.Document
	CVReview     document.Document
	Scholarships document.Document
	Prep         document.Document
	History      []oracle.Message
	Reply        string
	// Err is a short user-facing description of the stage that halted the
	// run; empty on success.
	Err string
}

func (s *State) fail(format string, args ...any) {
	s.Err = turn.Truncate(fmt.Sprintf(format, args...), maxErrChars)
}

// Runner executes the pipeline.
type Runner struct {
	agents         Agents
	store          storage.DocumentStore
	turns          storage.TurnLog
	prompter       Prompter
	maxTurns       int
	intakeMaxTurns int
	resume         string
	logger         *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxTurns caps the scholarships and prep conversations.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithResume sets the resume text passed to the CV review.
func WithResume(text string) Option {
	return func(r *Runner) { r.resume = text }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner. When store also implements storage.TurnLog,
// every agent turn is recorded.
func NewRunner(agents Agents, store storage.DocumentStore, p Prompter, opts ...Option) *Runner {
	r := &Runner{
		agents:         agents,
		store:          store,
		prompter:       p,
		maxTurns:       defaultMaxTurns,
		intakeMaxTurns: 3 * len(profile.DeepPaths),
		logger:         slog.Default(),
	}
	if tl, ok := store.(storage.TurnLog); ok {
		r.turns = tl
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run routes the client: a new client goes through every stage and gets
// the post-intake welcome; a returning client's input (or the login
// greeting when input is empty) goes straight to chat.
func (r *Runner) Run(ctx context.Context, clientID, input string) State {
	st := State{ClientID: clientID}
	log := r.logger.With("client_id", clientID)

	existing, err := storage.Get(r.store, storage.IntakeProfiles, clientID)
	switch {
	case err == nil:
		st.Profile = existing
		if strings.TrimSpace(input) == "" {
			input = chat.ExistingUserLogin
		}
		log.Info("returning client, routing to chat")
		r.runChat(ctx, &st, input)
		return st
	case !errors.Is(err, storage.ErrNotFound):
		st.fail("Loading profile failed: %v", err)
		return st
	}

	log.Info("new client, starting intake")
	steps := []func(context.Context, *State) bool{
		r.runIntake,
		r.runAdvisor,
		r.runCVReview,
		r.runScholarships,
		r.runPrep,
	}
	for i, step := range steps {
		if !step(ctx, &st) {
			log.Warn("pipeline halted", "stage", Order[i], "error", st.Err)
			return st
		}
	}
	r.runChat(ctx, &st, chat.StartIntake)
	return st
}

// Chat sends one follow-up message for a client who finished the pipeline.
func (r *Runner) Chat(ctx context.Context, clientID, input string) State {
	st := State{ClientID: clientID}
	r.runChat(ctx, &st, input)
	return st
}

// runIntake starts from st.Profile when a stage rerun loaded one.
func (r *Runner) runIntake(ctx context.Context, st *State) bool {
	start := st.Profile
	if start == nil {
		start = profile.New()
	}
	in := turn.Input{Profile: start}
	for range r.intakeMaxTurns {
		res, doc, err := r.agents.Intake.Next(ctx, in)
		if err != nil {
			st.fail("Intake failed: %v", err)
			return false
		}
		r.record(st.ClientID, StageIntake, res.Action, res.Question, res.NoteToUser)

		switch res.Action {
		case turn.ActionFinish:
			if err := storage.Put(r.store, storage.IntakeProfiles, st.ClientID, doc); err != nil {
				st.fail("Saving profile failed: %v", err)
				return false
			}
			st.Profile = doc
			r.prompter.Report(StageIntake, doc)
			return true
		case turn.ActionEndNotUS:
			st.fail("Intake ended: Student not eligible (US only).")
			return false
		}

		q, ok := r.question(st, "Intake", res.Question, res.NoteToUser)
		if !ok {
			return false
		}
		answer, ok := r.ask(ctx, st, StageIntake, q)
		if !ok {
			return false
		}
		in = turn.Input{Profile: doc, LastQuestionID: q.ID, LastAnswer: &answer}
	}
	st.fail("Intake: too many turns without completion.")
	return false
}

func (r *Runner) runAdvisor(ctx context.Context, st *State) bool {
	out, err := r.agents.Advisor.Recommend(ctx, st.Profile)
	if err != nil {
		st.fail("Advisor failed: %v", err)
		return false
	}
	doc, ok := r.save(st, storage.AdvisorResults, out)
	if !ok {
		return false
	}
	st.Advisor = doc
	r.prompter.Report(StageAdvisor, doc)
	return true
}

func (r *Runner) runCVReview(ctx context.Context, st *State) bool {
	out, err := r.agents.CVReview.Review(ctx, st.Profile, st.Advisor, r.resume)
	if err != nil {
		st.fail("CV review failed: %v", err)
		return false
	}
	doc, ok := r.save(st, storage.CVReviewResults, out)
	if !ok {
		return false
	}
	st.CVReview = doc
	r.prompter.Report(StageCVReview, doc)
	return true
}

// runScholarships converses over the intake profile overlaid with the
// scholarships sub-profile. Patches land in the sub-profile only.
func (r *Runner) runScholarships(ctx context.Context, st *State) bool {
	merged, err := MergedProfile(r.store, st.ClientID, st.Profile)
	if err != nil {
		st.fail("Scholarship agent failed: %v", err)
		return false
	}
	in := turn.Input{Profile: merged}

	for range r.maxTurns {
		res, merged, err := r.agents.Scholarships.Next(ctx, in, st.Advisor)
		if err != nil {
			st.fail("Scholarship agent failed: %v", err)
			return false
		}
		r.record(st.ClientID, StageScholarships, res.Action, res.Question, res.NoteToUser)
		if len(res.ProfilePatch) > 0 {
			if _, err := storage.Patch(r.store, storage.ScholarshipsProfiles, st.ClientID, res.ProfilePatch); err != nil {
				st.fail("Scholarship agent failed: %v", err)
				return false
			}
		}

		switch res.Action {
		case turn.ActionAsk:
			q, ok := r.question(st, "Scholarships", res.Question, "")
			if !ok {
				return false
			}
			answer, ok := r.ask(ctx, st, StageScholarships, q)
			if !ok {
				return false
			}
			in = turn.Input{Profile: merged, LastQuestionID: q.ID, LastAnswer: &answer}
		case turn.ActionEndNotUS:
			st.fail("Scholarships ended: Student not eligible (US only).")
			return false
		case turn.ActionClarify:
			st.fail("Scholarships: %s", res.NoteToUser)
			return false
		case turn.ActionRecommend:
			doc, ok := r.save(st, storage.ScholarshipRecommendations, ScholarshipsResult(res))
			if !ok {
				return false
			}
			st.Scholarships = doc
			r.prompter.Report(StageScholarships, doc)
			return true
		default:
			st.fail("Scholarships: unexpected action %q", res.Action)
			return false
		}
	}
	st.fail("Scholarships: too many turns without completion.")
	return false
}

// runPrep converses over the same merged profile. Its answers are
// written back to the intake profile.
func (r *Runner) runPrep(ctx context.Context, st *State) bool {
	merged, err := MergedProfile(r.store, st.ClientID, st.Profile)
	if err != nil {
		st.fail("Scholarship Prep agent failed: %v", err)
		return false
	}
	in := turn.Input{Profile: merged}

	for range r.maxTurns {
		res, merged, err := r.agents.Prep.Next(ctx, in, st.Scholarships)
		if err != nil {
			st.fail("Scholarship Prep agent failed: %v", err)
			return false
		}
		r.record(st.ClientID, StagePrep, res.Action, res.Question, res.NoteToUser)
		if len(res.ProfilePatch) > 0 {
			doc, err := storage.Patch(r.store, storage.IntakeProfiles, st.ClientID, res.ProfilePatch)
			if err != nil {
				st.fail("Scholarship Prep agent failed: %v", err)
				return false
			}
			st.Profile = doc
		}

		switch res.Action {
		case turn.ActionAsk:
			q, ok := r.question(st, "Prep", res.Question, "")
			if !ok {
				return false
			}
			answer, ok := r.ask(ctx, st, StagePrep, q)
			if !ok {
				return false
			}
			in = turn.Input{Profile: merged, LastQuestionID: q.ID, LastAnswer: &answer}
			continue
		case turn.ActionClarify:
			st.fail("Prep: %s", res.NoteToUser)
			return false
		}
		result, done := PrepResult(res)
		if !done {
			st.fail("Prep: unexpected action %q", res.Action)
			return false
		}

		doc, ok := r.save(st, storage.PrepSuggestions, result)
		if !ok {
			return false
		}
		st.Prep = doc
		r.prompter.Report(StagePrep, doc)
		return true
	}
	st.fail("Prep: too many turns without completion.")
	return false
}

func (r *Runner) runChat(ctx context.Context, st *State, input string) {
	history, err := LoadHistory(r.store, st.ClientID)
	if err != nil {
		r.logger.Warn("chat history unreadable, starting fresh", "client_id", st.ClientID, "error", err)
		history = nil
	}
	aggregated := chat.Aggregate(st.ClientID, chat.StoreSources(r.store, storage.ContextStores...))

	reply, history, err := r.agents.Chat.Reply(ctx, input, aggregated, history)
	if err != nil {
		st.fail("Chat failed: %v", err)
		return
	}
	st.Reply = reply
	st.History = history
	if err := SaveHistory(r.store, st.ClientID, history); err != nil {
		r.logger.Warn("saving chat history failed", "client_id", st.ClientID, "error", err)
	}
}

// question checks that a non-terminal turn carries a question.
func (r *Runner) question(st *State, label string, q *turn.Question, note string) (turn.Question, bool) {
	if q != nil && strings.TrimSpace(q.Text) != "" {
		return *q, true
	}
	if note != "" {
		st.fail("%s: %s", label, note)
	} else {
		st.fail("%s error: missing question.", label)
	}
	return turn.Question{}, false
}

func (r *Runner) ask(ctx context.Context, st *State, stage Stage, q turn.Question) (string, bool) {
	answer, err := r.prompter.Ask(ctx, stage, q)
	if errors.Is(err, ErrCancelled) {
		st.fail("User cancelled %s process.", stage)
		return "", false
	}
	if err != nil {
		st.fail("Reading answer failed: %v", err)
		return "", false
	}
	return answer, true
}

func (r *Runner) save(st *State, store string, v any) (document.Document, bool) {
	doc, err := document.FromValue(v)
	if err == nil {
		err = storage.Put(r.store, store, st.ClientID, doc)
	}
	if err != nil {
		st.fail("Saving %s failed: %v", store, err)
		return nil, false
	}
	return doc, true
}

func (r *Runner) record(clientID string, stage Stage, action turn.Action, q *turn.Question, note string) {
	r.logger.Debug("agent turn", "client_id", clientID, "stage", stage, "action", action)
	if r.turns == nil {
		return
	}
	rec := storage.TurnRecord{ClientID: clientID, Agent: string(stage), Action: string(action), Note: note}
	if q != nil {
		rec.QuestionID = q.ID
	}
	if err := r.turns.RecordTurn(rec); err != nil {
		r.logger.Warn("recording turn failed", "client_id", clientID, "stage", stage, "error", err)
	}
}
