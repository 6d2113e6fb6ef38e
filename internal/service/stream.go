package service

import (
	"microblog/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StreamService 封装公共时间线的业务逻辑，时间线与 thread 体系相互独立。
type StreamService struct {
	db *gorm.DB
}

func NewStreamService(db *gorm.DB) *StreamService {
	return &StreamService{db: db}
}

// Add 向时间线追加一条记录。
func (s *StreamService) Add(username, content string) (*models.StreamPost, error) {
	entry := models.StreamPost{Username: username, Content: content}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("id", entry.ID).Str("username", username).Msg("stream add")
	return &entry, nil
}

// List 按时间顺序返回时间线内容。
func (s *StreamService) List(limit int) ([]models.StreamPost, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	entries := make([]models.StreamPost, 0)
	if err := s.db.Order("id").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
