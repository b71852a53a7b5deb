package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"study-service/internal/ai"
	"study-service/internal/domain"
	"study-service/internal/logger"
	"study-service/internal/pdftext"
	"study-service/internal/quiz"
	"study-service/internal/search"
)

const defaultTopicIcon = "📘"

// StudyService owns study creation, topics and their learned/video state.
type StudyService struct {
	studies StudyRepository
	topics  TopicExtractor
	scripts ScriptWriter
	extract pdftext.Extractor
	log     *logger.Logger
	now     func() time.Time
}

// NewStudyService wires the study use cases. topics and scripts may be nil, in
// which case topics are split locally and scripts are unavailable.
func NewStudyService(studies StudyRepository, topics TopicExtractor, scripts ScriptWriter, log *logger.Logger) *StudyService {
	return &StudyService{
		studies: studies,
		topics:  topics,
		scripts: scripts,
		extract: pdftext.Extract,
		log:     log.With("service", "StudyService"),
		now:     time.Now,
	}
}

// CreateFromNotes creates a study from pasted notes.
func (s *StudyService) CreateFromNotes(ctx context.Context, userID, title, description, content string) (domain.Study, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" || content == "" {
		return domain.Study{}, domain.Invalid("Title and content are required")
	}
	return s.create(ctx, userID, title, strings.TrimSpace(description), content, domain.SourceNotes, nil)
}

// CreateFromPDFs creates a study from the text of up to pdftext.MaxFiles PDFs.
func (s *StudyService) CreateFromPDFs(ctx context.Context, userID, title, description string, files []pdftext.File) (domain.Study, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Study{}, domain.Invalid("Title is required")
	}
	content, names, skipped, err := pdftext.Combine(files, s.extract)
	if err != nil {
		return domain.Study{}, domain.Invalid(err.Error())
	}
	if len(skipped) > 0 {
		s.log.Warn("pdf files without text", "files", skipped)
	}
	return s.create(ctx, userID, title, strings.TrimSpace(description), content, domain.SourcePDF, names)
}

func (s *StudyService) create(ctx context.Context, userID, title, description, content string, source domain.SourceType, files []string) (domain.Study, error) {
	now := s.now()
	study := domain.Study{
		ID:           newID(),
		UserID:       userID,
		Title:        title,
		Description:  description,
		Content:      content,
		SourceType:   source,
		PDFFileNames: files,
		Topics:       s.buildTopics(ctx, title, content),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.studies.Create(ctx, &study); err != nil {
		return domain.Study{}, err
	}
	s.log.Info("study created", "study_id", study.ID, "source", source, "topics", len(study.Topics))
	return study, nil
}

func (s *StudyService) buildTopics(ctx context.Context, title, content string) []domain.Topic {
	var drafts []ai.TopicDraft
	if s.topics != nil {
		var err error
		drafts, err = s.topics.ExtractTopics(ctx, title, content)
		if err != nil {
			s.log.Warn("topic extraction failed, splitting locally", "error", err)
			drafts = nil
		}
	}
	if len(drafts) == 0 {
		drafts = SplitTopics(content)
	}
	topics := make([]domain.Topic, len(drafts))
	for i, d := range drafts {
		icon := d.Icon
		if icon == "" {
			icon = defaultTopicIcon
		}
		topics[i] = domain.Topic{ID: newID(), Title: d.Title, Icon: icon, Content: d.Content, Order: i}
	}
	return topics
}

// SplitTopics derives topics from level-one markdown headings. Text before the
// first heading becomes an "Overview" topic; content with no heading at all is
// a single "Overview" topic.
func SplitTopics(content string) []ai.TopicDraft {
	var (
		drafts  []ai.TopicDraft
		title   = "Overview"
		body    []string
		inFence bool
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" || title != "Overview" {
			drafts = append(drafts, ai.TopicDraft{Title: title, Icon: defaultTopicIcon, Content: text})
		}
		body = nil
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			continue
		}
		body = append(body, line)
	}
	flush()
	if len(drafts) == 0 {
		drafts = append(drafts, ai.TopicDraft{Title: "Overview", Icon: defaultTopicIcon, Content: strings.TrimSpace(content)})
	}
	return drafts
}

// List returns the caller's studies, newest first.
func (s *StudyService) List(ctx context.Context, userID string) ([]domain.StudySummary, error) {
	studies, err := s.studies.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(studies, func(i, j int) bool { return studies[i].CreatedAt.After(studies[j].CreatedAt) })
	out := make([]domain.StudySummary, len(studies))
	for i, st := range studies {
		out[i] = st.Summary()
	}
	return out, nil
}

// Get returns a study and the question count recommendation for all its topics.
func (s *StudyService) Get(ctx context.Context, userID, id string) (domain.Study, domain.QuestionRecommendation, error) {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return domain.Study{}, domain.QuestionRecommendation{}, err
	}
	return study, quiz.Recommend(quiz.ModeAll, len(study.Topics), 0), nil
}

// Recommendation computes the question count bounds for a topic mode and selection.
func (s *StudyService) Recommendation(ctx context.Context, userID, id string, mode quiz.Mode, custom []string) (domain.QuestionRecommendation, []string, error) {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return domain.QuestionRecommendation{}, nil, err
	}
	selected := quiz.SelectTopics(mode, study.Topics, custom)
	return quiz.Recommend(mode, len(study.Topics), len(selected)), selected, nil
}

// SetTopicLearned flips one topic's learned flag.
func (s *StudyService) SetTopicLearned(ctx context.Context, userID, id, topicID string, learned bool) (domain.Topic, error) {
	var out domain.Topic
	err := s.mutateTopic(ctx, userID, id, topicID, func(t *domain.Topic) {
		t.Learned = learned
		out = *t
	})
	return out, err
}

// SetTopicsLearned sets the learned flag on the given topics, or on every topic
// when topicIDs is empty. Unknown ids are ignored.
func (s *StudyService) SetTopicsLearned(ctx context.Context, userID, id string, topicIDs []string, learned bool) ([]domain.Topic, error) {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(topicIDs))
	for _, tid := range topicIDs {
		wanted[tid] = true
	}
	for i := range study.Topics {
		if len(topicIDs) == 0 || wanted[study.Topics[i].ID] {
			study.Topics[i].Learned = learned
		}
	}
	if err := s.save(ctx, &study); err != nil {
		return nil, err
	}
	return study.Topics, nil
}

// SetTopicVideo stores a finished video URL and clears the generating flag.
func (s *StudyService) SetTopicVideo(ctx context.Context, userID, id, topicID, url string) (domain.Topic, error) {
	if strings.TrimSpace(url) == "" {
		return domain.Topic{}, domain.Invalid("videoUrl is required")
	}
	var out domain.Topic
	err := s.mutateTopic(ctx, userID, id, topicID, func(t *domain.Topic) {
		t.VideoURL = &url
		t.VideoGenerating = false
		out = *t
	})
	return out, err
}

// ClearTopicVideo removes a topic's video.
func (s *StudyService) ClearTopicVideo(ctx context.Context, userID, id, topicID string) (domain.Topic, error) {
	var out domain.Topic
	err := s.mutateTopic(ctx, userID, id, topicID, func(t *domain.Topic) {
		t.VideoURL = nil
		t.VideoGenerating = false
		out = *t
	})
	return out, err
}

// SetTopicVideoGenerating marks a topic's video as in progress or not.
func (s *StudyService) SetTopicVideoGenerating(ctx context.Context, userID, id, topicID string, generating bool) (domain.Topic, error) {
	var out domain.Topic
	err := s.mutateTopic(ctx, userID, id, topicID, func(t *domain.Topic) {
		t.VideoGenerating = generating
		out = *t
	})
	return out, err
}

// TopicScript writes the narration for a topic video.
func (s *StudyService) TopicScript(ctx context.Context, userID, id, topicID string) (string, error) {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	topic, ok := study.TopicByID(topicID)
	if !ok {
		return "", domain.ErrTopicNotFound
	}
	if s.scripts == nil {
		return "", &ai.ErrProviderUnavailable{}
	}
	return s.scripts.TopicScript(ctx, study.Title, *topic)
}

// Search highlights query in the study content, or in one topic when topicID is set.
func (s *StudyService) Search(ctx context.Context, userID, id, topicID, query string, current int) (search.Result, error) {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return search.Result{}, err
	}
	content := study.Content
	if topicID != "" {
		topic, ok := study.TopicByID(topicID)
		if !ok {
			return search.Result{}, domain.ErrTopicNotFound
		}
		content = topic.Content
	}
	return search.Highlight(content, query, current)
}

func (s *StudyService) mutateTopic(ctx context.Context, userID, id, topicID string, fn func(*domain.Topic)) error {
	study, err := s.studies.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	topic, ok := study.TopicByID(topicID)
	if !ok {
		return domain.ErrTopicNotFound
	}
	fn(topic)
	return s.save(ctx, &study)
}

func (s *StudyService) save(ctx context.Context, study *domain.Study) error {
	study.UpdatedAt = s.now()
	return s.studies.Update(ctx, study)
}
