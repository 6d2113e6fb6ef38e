package service

import (
	"errors"

	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户相关的业务逻辑。
type UserService struct {
	db   *gorm.DB
	keys *auth.KeyPair
	cfg  config.Config
}

func NewUserService(db *gorm.DB, keys *auth.KeyPair, cfg config.Config) *UserService {
	return &UserService{db: db, keys: keys, cfg: cfg}
}

// RegisterResult 注册成功后返回的数据。
type RegisterResult struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Exists 检查用户名是否已被占用（区分大小写的精确匹配）。
func (s *UserService) Exists(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register 注册新用户，返回用户 ID 和用户名。
func (s *UserService) Register(username, password string) (*RegisterResult, error) {
	taken, err := s.Exists(username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &RegisterResult{ID: user.ID, Username: user.Username}, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"-"`
}

// Login 校验用户名密码并签发带 userID、username 声明的 RS256 token。
// 用户不存在和密码错误统一返回 ErrInvalidCredentials，不向外区分。
func (s *UserService) Login(username, password string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	token, err := auth.SignToken(s.keys, user.ID, user.Username, s.cfg.TokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// UserDTO 是对外输出的用户数据，不含口令散列。
type UserDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// List 返回用户列表。
func (s *UserService) List(limit int) ([]UserDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var users []models.User
	if err := s.db.Order("id").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, UserDTO{ID: u.ID, Username: u.Username})
	}
	return out, nil
}

// ByID 按 ID 查找用户。
func (s *UserService) ByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
