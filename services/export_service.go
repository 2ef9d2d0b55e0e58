package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/storage"
)

const rankingsContentType = "text/csv"

var rankingsHeader = []string{"elo", "name", "agent_id", "created_at", "owner_id", "wins", "losses", "draws", "score"}

// RankingsExport is a CSV snapshot of a season's ratings. URL is set when the
// file was uploaded; otherwise Content carries the CSV.
type RankingsExport struct {
	SeasonID int    `json:"season_id"`
	Rows     int    `json:"rows"`
	Key      string `json:"key,omitempty"`
	URL      string `json:"url,omitempty"`
	Content  []byte `json:"-"`
}

type RankingExportService interface {
	ExportSeasonRankings(ctx context.Context, seasonID int) (*RankingsExport, error)
}

type rankingExportService struct {
	ratings  RatingService
	uploader storage.FileUploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewRankingExportService builds the exporter. uploader may be nil, in which
// case exports are only returned to the caller.
func NewRankingExportService(ratings RatingService, uploader storage.FileUploader, logger *slog.Logger) RankingExportService {
	return &rankingExportService{
		ratings:  ratings,
		uploader: uploader,
		logger:   loggerOrDefault(logger),
		now:      time.Now,
	}
}

func (s *rankingExportService) ExportSeasonRankings(ctx context.Context, seasonID int) (*RankingsExport, error) {
	ratings, err := s.ratings.ListSeasonRatings(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	content, err := encodeRankings(ratings)
	if err != nil {
		return nil, err
	}
	export := &RankingsExport{SeasonID: seasonID, Rows: len(ratings), Content: content}

	if s.uploader == nil {
		return export, nil
	}

	key := fmt.Sprintf("rankings/season-%d/%s.csv", seasonID, s.now().UTC().Format("20060102T150405Z"))
	res, err := s.uploader.Upload(ctx, key, rankingsContentType, bytes.NewReader(content))
	if err != nil {
		s.logger.Error("rankings upload failed", slog.Int("season_id", seasonID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	export.Key = res.Key
	export.URL = res.Location
	s.logger.Info("rankings exported", slog.Int("season_id", seasonID), slog.Int("rows", export.Rows), slog.String("key", res.Key))
	return export, nil
}

func encodeRankings(ratings []*models.AgentRating) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rankingsHeader); err != nil {
		return nil, err
	}
	for _, r := range ratings {
		name, ownerID, createdAt := "", "", ""
		if r.Agent != nil {
			name = r.Agent.Name
			ownerID = strconv.Itoa(r.Agent.OwnerID)
			createdAt = r.Agent.CreatedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatFloat(r.Elo, 'f', 2, 64),
			name,
			strconv.Itoa(r.AgentID),
			createdAt,
			ownerID,
			strconv.Itoa(r.Wins),
			strconv.Itoa(r.Losses),
			strconv.Itoa(r.Draws),
			strconv.FormatFloat(r.Score, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode rankings: %w", err)
	}
	return buf.Bytes(), nil
}
