package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/models"
)

// IngestVideo ingests a single YouTube video using its transcript as the
// article body. Videos without captions are rejected; the caller records
// the error and moves on.
func (s *Service) IngestVideo(ctx context.Context, video models.VideoResult) (bool, error) {
	videoID := video.VideoID
	if videoID == "" {
		extracted, err := common.ExtractYouTubeVideoID(video.URL)
		if err != nil {
			return false, fmt.Errorf("invalid video url: %w", err)
		}
		videoID = extracted
	}

	canonical := common.YouTubeWatchURL(videoID)

	duplicate, err := s.isDuplicate(ctx, canonical)
	if err != nil {
		return false, err
	}
	if duplicate {
		s.logger.Debug().Str("url", canonical).Msg("Skipping duplicate video")
		return false, nil
	}

	transcript, err := s.transcripts.Fetch(ctx, videoID)
	if err != nil {
		return false, fmt.Errorf("transcript unavailable: %w", err)
	}

	content := buildVideoContent(video.Description, transcript)
	if len(content) < s.config.MinFeedContent {
		return false, fmt.Errorf("transcript too short (%d chars, floor %d)", len(content), s.config.MinFeedContent)
	}
	if len(content) > s.config.MaxContentLength {
		content = content[:s.config.MaxContentLength]
	}

	title := video.Title
	if title == "" {
		title = canonical
	}

	article := models.NewArticle(title, canonical, models.SourceTypeYouTube, video.ChannelTitle, content)
	if err := s.persistArticle(ctx, article); err != nil {
		return false, err
	}
	return true, nil
}

// IngestVideos walks video search hits, ingesting each one. Used by the
// video branch of research jobs.
func (s *Service) IngestVideos(ctx context.Context, videos []models.VideoResult, progress ProgressFunc) *Result {
	result := &Result{}
	total := len(videos)

	for _, video := range videos {
		if ctx.Err() != nil {
			result.addError(fmt.Sprintf("ingestion cancelled: %v", ctx.Err()))
			break
		}

		created, err := s.IngestVideo(ctx, video)
		result.Processed++
		if err != nil {
			result.addError(fmt.Sprintf("%s: %v", video.URL, err))
			s.logger.Warn().Err(err).Str("video_id", video.VideoID).Msg("Video ingestion failed")
		} else if created {
			result.Created++
		} else {
			result.Skipped++
		}
		notifyProgress(progress, total, result.Processed, result.Created)
	}

	return result
}

func buildVideoContent(description, transcript string) string {
	description = strings.TrimSpace(description)
	transcript = strings.TrimSpace(transcript)
	if description == "" {
		return transcript
	}
	return description + "\n\n" + transcript
}
