package scoring

import (
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/mfairbanks/jobsignal/internal/model"
)

// matchTextLimit bounds how much of the email body the text-based signals
// inspect. Company and title mentions cluster at the top of a message.
const matchTextLimit = 500

// legalSuffixes are company-name suffixes stripped before comparison so that
// "Google LLC" and "google" compare equal.
var legalSuffixes = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"corp":         {},
	"corporation":  {},
	"llc":          {},
	"llp":          {},
	"ltd":          {},
	"limited":      {},
	"gmbh":         {},
	"ag":           {},
	"sa":           {},
	"bv":           {},
	"plc":          {},
	"co":           {},
	"company":      {},
	"technologies": {},
	"labs":         {},
}

// Scorer computes the four per-signal scores for one (email, job) pair. Every
// scorer is total: it returns a defined score even when inputs are missing.
type Scorer struct {
	ats    map[string]struct{}
	metric *metrics.Levenshtein
	cfg    Config
}

// NewScorer builds a Scorer from a validated configuration.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ats := make(map[string]struct{}, len(cfg.ATSDomains))
	for _, d := range cfg.ATSDomains {
		ats[strings.ToLower(d)] = struct{}{}
	}

	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false

	return &Scorer{
		cfg:    cfg,
		ats:    ats,
		metric: lev,
	}, nil
}

// Config returns the scorer's immutable configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// ScoreSignals computes all four signal scores for the pair.
func (s *Scorer) ScoreSignals(email model.EmailRecord, job model.JobCandidate) model.SignalScores {
	return model.SignalScores{
		Name:     s.NameScore(email, job),
		Domain:   s.DomainScore(email, job),
		Title:    s.TitleScore(email, job),
		Timeline: s.TimelineScore(email, job),
	}
}

// NameScore measures fuzzy similarity between the candidate's company name
// and company mentions in the email: the sender-domain root and the best
// matching phrase of the subject plus body prefix. Missing company names
// score 0.
func (s *Scorer) NameScore(email model.EmailRecord, job model.JobCandidate) float64 {
	company := normalizeCompany(job.CompanyName)
	if company == "" {
		return 0.0
	}

	best := 0.0

	// Sender-domain root carries the company name for direct corporate mail,
	// but none at all for applicant-tracking relays.
	domain := email.SenderDomain()
	if domain != "" && !s.isATS(domain) {
		if root := domainRoot(domain); root != "" {
			best = strutil.Similarity(company, root, s.metric)
		}
	}

	if text := normalizeText(email.MatchText(matchTextLimit)); text != "" {
		if sim := s.bestWindowSimilarity(company, text); sim > best {
			best = sim
		}
	}

	return clampScore(best)
}

// DomainScore compares the sender domain against the candidate's company
// domain: 1.0 on exact or subdomain match, 0.0 when both are known and
// differ, and a neutral fallback when either side is unknown or the sender is
// a known applicant-tracking relay carrying no signal.
func (s *Scorer) DomainScore(email model.EmailRecord, job model.JobCandidate) float64 {
	sender := email.SenderDomain()
	company := strings.ToLower(strings.TrimSpace(job.CompanyDomain))

	if sender == "" || company == "" || s.isATS(sender) {
		return s.cfg.NeutralDomainScore
	}
	if sender == company || strings.HasSuffix(sender, "."+company) {
		return 1.0
	}
	return 0.0
}

// TitleScore measures fuzzy similarity between the candidate's position title
// and the best matching phrase of the email text. Neutral when either side is
// missing: an email that never mentions a title says nothing either way.
func (s *Scorer) TitleScore(email model.EmailRecord, job model.JobCandidate) float64 {
	title := normalizeText(job.PositionTitle)
	if title == "" {
		return s.cfg.NeutralTitleScore
	}

	text := normalizeText(email.MatchText(matchTextLimit))
	if text == "" {
		return s.cfg.NeutralTitleScore
	}

	return clampScore(s.bestWindowSimilarity(title, text))
}

// TimelineScore decays linearly from 1.0 (received the day of application) to
// 0.0 at the window boundary. Emails received before the application date
// score 0, except within a short grace period that tolerates clock skew.
func (s *Scorer) TimelineScore(email model.EmailRecord, job model.JobCandidate) float64 {
	if job.AppliedAt.IsZero() || email.ReceivedAt.IsZero() {
		return 0.0
	}

	days := email.ReceivedAt.Sub(job.AppliedAt).Hours() / 24
	grace := float64(s.cfg.GracePeriodDays)
	window := float64(s.cfg.TimelineWindowDays)

	switch {
	case days < -grace:
		// A response cannot precede its application.
		return 0.0
	case days < 0:
		return 1.0
	case days >= window:
		return 0.0
	default:
		return clampScore(1.0 - days/window)
	}
}

// InWindow reports whether the candidate is eligible for matching against the
// email at all: applied within the recency window before the email, or within
// the grace period after it.
func (s *Scorer) InWindow(email model.EmailRecord, job model.JobCandidate) bool {
	if job.AppliedAt.IsZero() || email.ReceivedAt.IsZero() {
		return false
	}
	window := time.Duration(s.cfg.TimelineWindowDays) * 24 * time.Hour
	grace := time.Duration(s.cfg.GracePeriodDays) * 24 * time.Hour
	diff := email.ReceivedAt.Sub(job.AppliedAt)
	return diff >= -grace && diff <= window
}

// WindowStart returns the earliest application date eligible for an email
// received at the given time. Used to bound the candidate fetch.
func (s *Scorer) WindowStart(receivedAt time.Time) time.Time {
	return receivedAt.AddDate(0, 0, -s.cfg.TimelineWindowDays)
}

func (s *Scorer) isATS(domain string) bool {
	if _, ok := s.ats[domain]; ok {
		return true
	}
	// Relay subdomains like mail.greenhouse.io carry no signal either.
	for ats := range s.ats {
		if strings.HasSuffix(domain, "."+ats) {
			return true
		}
	}
	return false
}

// bestWindowSimilarity slides a window the width of the needle across the
// haystack tokens and returns the highest similarity seen.
func (s *Scorer) bestWindowSimilarity(needle, haystack string) float64 {
	needleTokens := strings.Fields(needle)
	haystackTokens := strings.Fields(haystack)
	if len(needleTokens) == 0 || len(haystackTokens) == 0 {
		return 0.0
	}

	width := len(needleTokens)
	if width > len(haystackTokens) {
		width = len(haystackTokens)
	}

	best := 0.0
	for i := 0; i+width <= len(haystackTokens); i++ {
		window := strings.Join(haystackTokens[i:i+width], " ")
		if sim := strutil.Similarity(needle, window, s.metric); sim > best {
			best = sim
		}
	}
	return best
}

// normalizeCompany lowercases, strips punctuation, and removes legal suffixes
// such as "Inc" or "GmbH".
func normalizeCompany(name string) string {
	tokens := strings.Fields(normalizeText(name))
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := legalSuffixes[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		// Name consisted solely of suffix words; keep it rather than erase it.
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// normalizeText lowercases and replaces punctuation with spaces.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x80:
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// domainRoot extracts the organization label from a domain:
// "mail.google.com" → "google".
func domainRoot(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain
	}
	return labels[len(labels)-2]
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
