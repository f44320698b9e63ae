package scholarships

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/collegeai/internal/deadline"
	"github.com/kalambet/collegeai/internal/webcheck"
)

// Web is the HTTP collaborator the verifier needs.
type Web interface {
	Probe(ctx context.Context, url string) error
	FetchText(ctx context.Context, url string) (string, error)
}

// Verifier drops recommendations whose link is not reachable and normalizes
// deadlines to YYYY-MM-DD.
type Verifier struct {
	web         Web
	max         int
	concurrency int
	logger      *slog.Logger
}

// NewVerifier creates a Verifier that keeps at most maxItems candidates and
// checks up to concurrency of them at once. A concurrency of 1 checks them
// one after another.
func NewVerifier(web Web, maxItems, concurrency int, logger *slog.Logger) *Verifier {
	if maxItems < 1 {
		maxItems = defaultMaxRecommendations
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{web: web, max: maxItems, concurrency: concurrency, logger: logger}
}

// Verify returns the candidates that survive verification, in input order.
// Only the first maxItems candidates are considered. A candidate is kept only when
// its link is an absolute http(s) URL that answers with a status below 400.
// Its deadline is parsed when present, otherwise searched for in the linked
// page text, and left nil when neither yields a date.
func (v *Verifier) Verify(ctx context.Context, candidates []Scholarship) []Scholarship {
	if len(candidates) > v.max {
		candidates = candidates[:v.max]
	}

	checked := make([]*Scholarship, len(candidates))
	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i := range candidates {
		c := candidates[i]
		g.Go(func() error {
			if s, ok := v.check(ctx, c); ok {
				checked[i] = &s
			}
			return nil
		})
	}
	g.Wait()

	verified := make([]Scholarship, 0, len(checked))
	for _, s := range checked {
		if s != nil {
			verified = append(verified, *s)
		}
	}
	return verified
}

func (v *Verifier) check(ctx context.Context, s Scholarship) (Scholarship, bool) {
	link := strings.TrimSpace(s.Link)
	if !webcheck.IsWebURL(link) {
		v.logger.Debug("dropping scholarship with invalid link", "name", s.Name, "url", s.Link)
		return s, false
	}
	if err := v.web.Probe(ctx, link); err != nil {
		v.logger.Debug("dropping unreachable scholarship", "name", s.Name, "url", link, "error", err)
		return s, false
	}
	s.Link = link
	s.Deadline = v.deadline(ctx, s)
	return s, true
}

func (v *Verifier) deadline(ctx context.Context, s Scholarship) *string {
	if s.Deadline != nil {
		if iso, ok := deadline.Parse(*s.Deadline); ok {
			return &iso
		}
	}
	text, err := v.web.FetchText(ctx, s.Link)
	if err != nil {
		v.logger.Debug("deadline page fetch failed", "url", s.Link, "error", err)
		return nil
	}
	if iso, ok := deadline.Find(text); ok {
		return &iso
	}
	return nil
}
