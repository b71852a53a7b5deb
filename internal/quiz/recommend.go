package quiz

import (
	"fmt"
	"slices"

	"study-service/internal/domain"
)

// Mode selects which topics a quiz covers.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeToLearn Mode = "to_learn"
	ModeReview  Mode = "review"
	ModeCustom  Mode = "custom"
)

// ParseMode returns ModeAll for empty or unknown values.
func ParseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeToLearn, ModeReview, ModeCustom:
		return Mode(raw)
	default:
		return ModeAll
	}
}

const (
	questionsPerTopic = 10
	minPerTopic       = 5
	maxPerTopic       = 15
	floorQuestions    = 5
)

// SelectTopics resolves the topic ids a mode covers. Custom ids that do not
// name an existing topic are dropped; order follows the study's topics.
func SelectTopics(mode Mode, topics []domain.Topic, custom []string) []string {
	wanted := make(map[string]bool, len(custom))
	for _, id := range custom {
		wanted[id] = true
	}
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		var include bool
		switch mode {
		case ModeAll:
			include = true
		case ModeToLearn:
			include = !t.Learned
		case ModeReview:
			include = t.Learned
		case ModeCustom:
			include = wanted[t.ID]
		}
		if include {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Recommend computes the question count bounds for a topic selection.
func Recommend(mode Mode, totalTopics, selected int) domain.QuestionRecommendation {
	if totalTopics <= 0 {
		totalTopics = 1
	}
	var k int
	switch {
	case mode == ModeAll:
		k = totalTopics
	case mode == ModeCustom && selected == 0:
		k = 1
	case selected > 0:
		k = selected
	default:
		k = totalTopics
	}

	var label string
	switch {
	case mode == ModeAll:
		label = fmt.Sprintf("All %d topics", totalTopics)
	case mode == ModeCustom && selected == 0:
		label = "Select topics"
	default:
		label = fmt.Sprintf("%d of %d topics", k, totalTopics)
	}

	return domain.QuestionRecommendation{
		Min:       max(floorQuestions, k*minPerTopic),
		Max:       k * maxPerTopic,
		Suggested: k * questionsPerTopic,
		Label:     label,
	}
}

// Planner holds the quiz setup form: mode, topic selection and question count.
// Any mode or selection change resets the count to the new suggestion; an
// explicit SetCount sticks until the next such change.
type Planner struct {
	topics   []domain.Topic
	mode     Mode
	selected []string
	count    int
	rec      domain.QuestionRecommendation
}

// NewPlanner starts in ModeAll.
func NewPlanner(topics []domain.Topic) *Planner {
	p := &Planner{topics: topics}
	p.SetMode(ModeAll)
	return p
}

// SetMode switches mode. Entering custom from another mode clears the selection.
func (p *Planner) SetMode(mode Mode) {
	switch mode {
	case ModeCustom:
		if p.mode != ModeCustom {
			p.selected = nil
		}
	case ModeAll:
		p.selected = nil
	default:
		p.selected = SelectTopics(mode, p.topics, nil)
	}
	p.mode = mode
	p.recompute()
}

// Toggle adds or removes a topic from a custom selection. Other modes ignore it.
func (p *Planner) Toggle(topicID string) {
	if p.mode != ModeCustom {
		return
	}
	for i, id := range p.selected {
		if id == topicID {
			p.selected = append(p.selected[:i:i], p.selected[i+1:]...)
			p.recompute()
			return
		}
	}
	if _, ok := findTopic(p.topics, topicID); !ok {
		return
	}
	p.selected = append(p.selected, topicID)
	p.recompute()
}

// SetSelection replaces a custom selection.
func (p *Planner) SetSelection(ids []string) {
	if p.mode != ModeCustom {
		return
	}
	p.selected = SelectTopics(ModeCustom, p.topics, ids)
	p.recompute()
}

// SelectAll selects every topic in custom mode.
func (p *Planner) SelectAll() {
	if p.mode != ModeCustom {
		return
	}
	p.selected = SelectTopics(ModeAll, p.topics, nil)
	p.recompute()
}

// Clear empties a custom selection.
func (p *Planner) Clear() {
	if p.mode != ModeCustom {
		return
	}
	p.selected = nil
	p.recompute()
}

// SetCount records an explicit count. Non-positive values fall back to the suggestion.
func (p *Planner) SetCount(n int) {
	if n <= 0 {
		n = p.rec.Suggested
	}
	p.count = n
}

// SetTopics replaces the study's topics, e.g. after learned flags changed.
// The count is kept unless the resolved selection or recommendation changed.
func (p *Planner) SetTopics(topics []domain.Topic) {
	p.topics = topics
	var selected []string
	switch p.mode {
	case ModeAll:
	case ModeCustom:
		selected = SelectTopics(ModeCustom, topics, p.selected)
	default:
		selected = SelectTopics(p.mode, topics, nil)
	}
	rec := Recommend(p.mode, len(topics), len(selected))
	if slices.Equal(selected, p.selected) && rec == p.rec {
		return
	}
	p.selected = selected
	p.recompute()
}

func (p *Planner) Mode() Mode                                    { return p.mode }
func (p *Planner) Count() int                                    { return p.count }
func (p *Planner) Recommendation() domain.QuestionRecommendation { return p.rec }

// SelectedTopics returns the topic ids the quiz will cover. ModeAll returns nil,
// meaning every topic.
func (p *Planner) SelectedTopics() []string {
	out := make([]string, len(p.selected))
	copy(out, p.selected)
	if p.mode == ModeAll {
		return nil
	}
	return out
}

func (p *Planner) recompute() {
	p.rec = Recommend(p.mode, len(p.topics), len(p.selected))
	p.count = p.rec.Suggested
}

func findTopic(topics []domain.Topic, id string) (domain.Topic, bool) {
	for _, t := range topics {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Topic{}, false
}
