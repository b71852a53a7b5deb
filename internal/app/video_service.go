package app

import (
	"context"

	"study-service/internal/ai"
	"study-service/internal/domain"
	"study-service/internal/logger"
)

// VideoService produces narrated topic videos.
type VideoService struct {
	studies  *StudyService
	renderer VideoRenderer
	log      *logger.Logger
}

func NewVideoService(studies *StudyService, renderer VideoRenderer, log *logger.Logger) *VideoService {
	return &VideoService{
		studies:  studies,
		renderer: renderer,
		log:      log.With("service", "VideoService"),
	}
}

// Generate writes a script for the topic, renders it and stores the video URL.
// The topic is flagged as generating for the duration; on failure the flag is
// cleared and any earlier video is kept.
func (s *VideoService) Generate(ctx context.Context, userID, studyID, topicID string, onProgress func(domain.VideoProgress)) (string, error) {
	if onProgress == nil {
		onProgress = func(domain.VideoProgress) {}
	}
	if s.renderer == nil {
		return "", &ai.ErrProviderUnavailable{}
	}
	if _, err := s.studies.SetTopicVideoGenerating(ctx, userID, studyID, topicID, true); err != nil {
		return "", err
	}
	// Detached so the flag is cleared even when the caller has gone away.
	cleanup := context.WithoutCancel(ctx)

	onProgress(domain.VideoProgress{Status: domain.VideoGeneratingScript})
	script, err := s.studies.TopicScript(ctx, userID, studyID, topicID)
	if err != nil {
		s.fail(cleanup, userID, studyID, topicID, err)
		return "", err
	}

	url, err := s.renderer.Generate(ctx, script, onProgress)
	if err != nil {
		s.fail(cleanup, userID, studyID, topicID, err)
		return "", err
	}
	if _, err := s.studies.SetTopicVideo(cleanup, userID, studyID, topicID, url); err != nil {
		return "", err
	}
	s.log.Info("topic video ready", "study_id", studyID, "topic_id", topicID)
	return url, nil
}

func (s *VideoService) fail(ctx context.Context, userID, studyID, topicID string, cause error) {
	s.log.Warn("topic video failed", "study_id", studyID, "topic_id", topicID, "error", cause)
	if _, err := s.studies.SetTopicVideoGenerating(ctx, userID, studyID, topicID, false); err != nil {
		s.log.Error("clearing video flag failed", "study_id", studyID, "topic_id", topicID, "error", err)
	}
}
