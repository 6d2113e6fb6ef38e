package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"microblog/internal/auth"
	"microblog/internal/models"
	"microblog/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// maxContentLen 是帖子正文的软上限，在入口处校验，引擎内部不再检查。
const maxContentLen = 140

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc   *service.UserService
	postSvc   *service.PostService
	streamSvc *service.StreamService
}

func NewHandler(userSvc *service.UserService, postSvc *service.PostService, streamSvc *service.StreamService) *Handler {
	return &Handler{userSvc: userSvc, postSvc: postSvc, streamSvc: streamSvc}
}

// postDTO 是对外输出的帖子数据。
type postDTO struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	Content      string    `json:"content"`
	ParentPostID *uint     `json:"parent_post_id"`
	ThreadRootID uint      `json:"thread_root_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPostDTO(p models.Post) postDTO {
	return postDTO{
		ID:           p.ID,
		UserID:       p.UserID,
		Content:      p.Content,
		ParentPostID: p.ParentPostID,
		ThreadRootID: p.ThreadRootID,
		CreatedAt:    p.CreatedAt,
	}
}

func toPostDTOs(posts []models.Post) []postDTO {
	out := make([]postDTO, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostDTO(p))
	}
	return out
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": result.ID, "username": result.Username})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// ListUsers 处理获取用户列表请求。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userSvc.List(100)
	if err != nil {
		log.Error().Err(err).Msg("list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Me 返回当前 token 对应的用户信息。
func (h *Handler) Me(c *gin.Context) {
	userID := auth.GetUserID(c)
	user, err := h.userSvc.ByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Uint("user_id", userID).Msg("get current user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// CreatePost 处理发帖请求，parent_post_id 非空时作为回复挂到对应 thread。
func (h *Handler) CreatePost(c *gin.Context) {
	var req struct {
		UserID       uint   `json:"user_id"`
		Content      string `json:"content"`
		ParentPostID *uint  `json:"parent_post_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.UserID == 0 || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len([]rune(req.Content)) > maxContentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be at most 140 characters"})
		return
	}
	post, err := h.postSvc.Create(req.UserID, req.Content, req.ParentPostID)
	if err != nil {
		if errors.Is(err, service.ErrParentNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent post not found"})
			return
		}
		log.Error().Err(err).Uint("user_id", req.UserID).Msg("create post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}
	c.JSON(http.StatusOK, toPostDTO(*post))
}

// CreateThread 处理显式开 thread 请求，带 parent_post_id 的请求被拒绝。
func (h *Handler) CreateThread(c *gin.Context) {
	var req struct {
		UserID       uint   `json:"user_id"`
		Content      string `json:"content"`
		ParentPostID *uint  `json:"parent_post_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.ParentPostID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a thread must start with a root post without parent_post_id"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.UserID == 0 || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len([]rune(req.Content)) > maxContentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be at most 140 characters"})
		return
	}
	post, err := h.postSvc.Create(req.UserID, req.Content, nil)
	if err != nil {
		log.Error().Err(err).Uint("user_id", req.UserID).Msg("create thread")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create thread"})
		return
	}
	c.JSON(http.StatusOK, toPostDTO(*post))
}

// GetPost 按 ID 返回单个帖子。
func (h *Handler) GetPost(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	post, err := h.postSvc.ByID(id)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		log.Error().Err(err).Uint("post_id", id).Msg("get post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get post"})
		return
	}
	c.JSON(http.StatusOK, toPostDTO(*post))
}

// GetReplies 返回帖子的直接回复，帖子不存在时返回空列表而非错误。
func (h *Handler) GetReplies(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	replies, err := h.postSvc.Replies(id)
	if err != nil {
		log.Error().Err(err).Uint("post_id", id).Msg("get replies")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list replies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": toPostDTOs(replies)})
}

// ListRootThreads 返回全部根帖，作为 thread 索引。
func (h *Handler) ListRootThreads(c *gin.Context) {
	roots, err := h.postSvc.Roots()
	if err != nil {
		log.Error().Err(err).Msg("list root threads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list threads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": toPostDTOs(roots)})
}

// ListPosts 按 user_id 过滤返回帖子列表。
func (h *Handler) ListPosts(c *gin.Context) {
	userIDStr := c.Query("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	userID, err := parseID(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	posts, err := h.postSvc.ByUser(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("list posts by user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toPostDTOs(posts)})
}

// DeletePost 级联删除帖子及其回复子树。
func (h *Handler) DeletePost(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	if err := h.postSvc.Delete(id); err != nil {
		if errors.Is(err, service.ErrThreadCycle) {
			log.Error().Uint("post_id", id).Msg("delete post: reply graph cycle")
			c.JSON(http.StatusConflict, gin.H{"error": "reply graph is corrupted"})
			return
		}
		log.Error().Err(err).Uint("post_id", id).Msg("delete post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

// Feed 返回随机抽样的帖子，仅对持有效 token 的调用开放。
func (h *Handler) Feed(c *gin.Context) {
	posts, err := h.postSvc.Feed()
	if err != nil {
		log.Error().Err(err).Msg("feed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": toPostDTOs(posts)})
}

// GetStream 返回公共时间线。
func (h *Handler) GetStream(c *gin.Context) {
	entries, err := h.streamSvc.List(100)
	if err != nil {
		log.Error().Err(err).Msg("get stream")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stream"})
		return
	}
	type entryDTO struct {
		ID        uint      `json:"id"`
		Username  string    `json:"username"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO{ID: e.ID, Username: e.Username, Content: e.Content, CreatedAt: e.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"stream": out})
}

// AddToStream 向公共时间线追加一条记录。
func (h *Handler) AddToStream(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Content  string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Content = strings.TrimSpace(req.Content)
	if req.Username == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len([]rune(req.Content)) > maxContentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be at most 140 characters"})
		return
	}
	entry, err := h.streamSvc.Add(req.Username, req.Content)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("add to stream")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add to stream"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": entry.ID, "username": entry.Username, "content": entry.Content})
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}
