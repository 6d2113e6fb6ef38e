package service

import (
	"errors"
	"math/rand"

	"microblog/internal/metrics"
	"microblog/internal/models"

	"gorm.io/gorm"
)

// feedSize 是 Feed 一次抽样返回的帖子数上限。
const feedSize = 5

// PostService 封装帖子与 thread 相关的业务逻辑。
// thread 标识约定：根帖的 ThreadRootID 等于自身 ID，回复在创建时复制父帖的
// ThreadRootID，之后不再重算；回复列表是 parent_post_id 上的派生视图。
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// Create 创建帖子。parentID 非空时视为回复：父帖不存在返回 ErrParentNotFound
// 且不落库；父帖存在则复制其 ThreadRootID。parentID 为空时开新 thread，
// 先写入帖子再把 ThreadRootID 指向自身。
func (s *PostService) Create(userID uint, content string, parentID *uint) (*models.Post, error) {
	post := models.Post{UserID: userID, Content: content}

	if parentID != nil {
		var parent models.Post
		if err := s.db.First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		post.ParentPostID = parentID
		post.ThreadRootID = parent.ThreadRootID
		if err := s.db.Create(&post).Error; err != nil {
			return nil, err
		}
		metrics.PostsCreatedTotal.Inc()
		return &post, nil
	}

	if err := s.db.Create(&post).Error; err != nil {
		return nil, err
	}
	post.ThreadRootID = post.ID
	if err := s.db.Model(&models.Post{}).Where("id = ?", post.ID).
		Update("thread_root_id", post.ID).Error; err != nil {
		return nil, err
	}
	metrics.PostsCreatedTotal.Inc()
	return &post, nil
}

// ByID 按 ID 查找帖子，不存在返回 ErrPostNotFound。
func (s *PostService) ByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Replies 返回指定帖子的直接回复；帖子不存在或没有回复时返回空切片。
func (s *PostService) Replies(postID uint) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	if err := s.db.Where("parent_post_id = ?", postID).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Roots 返回所有根帖，用于 thread 索引视图。
func (s *PostService) Roots() ([]models.Post, error) {
	posts := make([]models.Post, 0)
	if err := s.db.Where("parent_post_id IS NULL").Order("id desc").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ByUser 返回指定用户的全部帖子。
func (s *PostService) ByUser(userID uint) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	if err := s.db.Where("user_id = ?", userID).Order("id desc").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Delete 级联删除帖子及其整棵回复子树。用显式 worklist 而非递归收集子树，
// 再按收集顺序的倒序删除，保证子节点先于父节点落删。同一 ID 第二次出现
// 说明回复图被外部写坏成环，返回 ErrThreadCycle 且不执行任何删除。
// 对不存在的 ID 删除是幂等的 no-op。
func (s *PostService) Delete(postID uint) error {
	order := []uint{postID}
	seen := map[uint]struct{}{postID: {}}
	for i := 0; i < len(order); i++ {
		var replies []models.Post
		if err := s.db.Select("id").Where("parent_post_id = ?", order[i]).Find(&replies).Error; err != nil {
			return err
		}
		for _, r := range replies {
			if _, ok := seen[r.ID]; ok {
				return ErrThreadCycle
			}
			seen[r.ID] = struct{}{}
			order = append(order, r.ID)
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		if err := s.db.Delete(&models.Post{}, order[i]).Error; err != nil {
			return err
		}
	}
	metrics.PostsDeletedTotal.Add(float64(len(order)))
	return nil
}

// Feed 从全部帖子中等概率不放回地抽取 min(5, 总数) 条。
// 这是占位的个性化算法，不含时效或社交关系加权。
func (s *PostService) Feed() ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.Find(&posts).Error; err != nil {
		return nil, err
	}
	metrics.FeedRequestsTotal.Inc()
	return samplePosts(posts, feedSize), nil
}

// samplePosts 对切片做前 n 位的 Fisher-Yates 部分洗牌并返回前缀，
// 原切片会被就地打乱。
func samplePosts(posts []models.Post, n int) []models.Post {
	if n > len(posts) {
		n = len(posts)
	}
	for i := 0; i < n; i++ {
		j := i + rand.Intn(len(posts)-i)
		posts[i], posts[j] = posts[j], posts[i]
	}
	return posts[:n]
}
