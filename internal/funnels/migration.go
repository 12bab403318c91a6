package funnels

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"quiz-funnels/internal/models"
)

// legacyLinks is the pre-migration link settings record.
type legacyLinks struct {
	FinalRedirectLink string `json:"finalRedirectLink"`
	Tracking          string `json:"tracking"`
	ConversionGoal    string `json:"conversionGoal"`
}

// claimMigration reports whether this call owns the once-per-process
// migration check.
func (r *Repository) claimMigration() bool {
	if r.flags == nil {
		return false
	}

	r.migrationMu.Lock()
	defer r.migrationMu.Unlock()

	if r.migrationChecked {
		return false
	}
	r.migrationChecked = true
	return true
}

// migrateLegacy converts the legacy quiz data into one funnel and sets the
// migration flag. It returns the new funnel id, or "" when nothing had to be
// migrated.
func (r *Repository) migrateLegacy(ctx context.Context) (string, error) {
	mc := r.cfg.Migration

	flag, ok, err := r.flags.Get(ctx, mc.FlagKey)
	if err != nil {
		return "", fmt.Errorf("read migration flag: %w", err)
	}
	if ok && flag != "" {
		return "", nil
	}

	rawQuestions, okQuestions, err := r.flags.Get(ctx, mc.LegacyQuestions)
	if err != nil {
		return "", fmt.Errorf("read legacy questions: %w", err)
	}
	rawLinks, okLinks, err := r.flags.Get(ctx, mc.LegacyLinks)
	if err != nil {
		return "", fmt.Errorf("read legacy links: %w", err)
	}
	if !okQuestions || !okLinks || rawQuestions == "" || rawLinks == "" {
		return "", nil
	}

	var questions []models.Question
	if err := json.Unmarshal([]byte(rawQuestions), &questions); err != nil {
		r.log.WithError(err).Warn("Legacy questions are not valid JSON, skipping migration", nil)
		return "", nil
	}
	var links legacyLinks
	if err := json.Unmarshal([]byte(rawLinks), &links); err != nil {
		r.log.WithError(err).Warn("Legacy links are not valid JSON, skipping migration", nil)
		return "", nil
	}
	if len(questions) == 0 {
		return "", nil
	}

	data := models.DefaultFunnelData()
	data.Questions = normalizeLegacyQuestions(questions)
	if links.FinalRedirectLink != "" {
		data.FinalRedirectLink = links.FinalRedirectLink
	}
	if links.Tracking != "" {
		data.Tracking = links.Tracking
	}
	if links.ConversionGoal != "" {
		data.ConversionGoal = links.ConversionGoal
	}

	id, err := r.add(ctx, models.Funnel{Name: mc.MigratedName, Data: data})
	if err != nil {
		return "", err
	}

	if err := r.flags.Set(ctx, mc.FlagKey, "true"); err != nil {
		// the funnel exists; a later process would migrate it a second time
		return id, fmt.Errorf("set migration flag: %w", err)
	}
	return id, nil
}

// normalizeLegacyQuestions fills in ids and types that old records may lack.
func normalizeLegacyQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, 0, len(questions))
	seen := map[string]bool{}
	for _, q := range questions {
		q = q.Clone()
		if q.ID == "" || seen[q.ID] {
			q.ID = uuid.New().String()
		}
		seen[q.ID] = true
		if q.Type == "" {
			q.Type = models.QuestionTypeSingleChoice
		}
		for i := range q.Answers {
			if q.Answers[i].ID == "" {
				q.Answers[i].ID = uuid.New().String()
			}
		}
		out = append(out, q)
	}
	return out
}
