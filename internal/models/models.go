package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Post 既表示根帖也表示回复：ParentPostID 为空即为根帖；
// ThreadRootID 在创建时确定（根帖指向自身，回复复制父帖的值），之后不再改动。
type Post struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	Content      string `gorm:"type:text;not null"`
	ParentPostID *uint  `gorm:"index:idx_post_parent"`
	ThreadRootID uint   `gorm:"index:idx_post_thread_root"`
	CreatedAt    time.Time
}

// StreamPost 是独立于 thread 的公共时间线条目。
type StreamPost struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:64;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}
