package service

import (
	"errors"
	"testing"

	"microblog/internal/db"
	"microblog/internal/models"

	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("host=localhost user=postgres password=postgres dbname=microblog port=5432 sslmode=disable TimeZone=UTC")
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	if err := gdb.Exec("DELETE FROM posts").Error; err != nil {
		t.Fatalf("clean posts table: %v", err)
	}
	return gdb
}

func TestPostService_CreateRoot(t *testing.T) {
	svc := NewPostService(testDB(t))

	post, err := svc.Create(1, "first!", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.ID == 0 {
		t.Fatal("Create() should assign an id")
	}
	if post.ParentPostID != nil {
		t.Errorf("root post ParentPostID = %v, want nil", *post.ParentPostID)
	}
	if post.ThreadRootID != post.ID {
		t.Errorf("root post ThreadRootID = %d, want own id %d", post.ThreadRootID, post.ID)
	}

	roots, err := svc.Roots()
	if err != nil {
		t.Fatalf("Roots() error = %v", err)
	}
	found := false
	for _, r := range roots {
		if r.ID == post.ID {
			found = true
		}
	}
	if !found {
		t.Error("Roots() should include the new root post")
	}
}

func TestPostService_CreateReply(t *testing.T) {
	svc := NewPostService(testDB(t))

	root, err := svc.Create(1, "root", nil)
	if err != nil {
		t.Fatalf("Create() root error = %v", err)
	}
	reply, err := svc.Create(2, "reply", &root.ID)
	if err != nil {
		t.Fatalf("Create() reply error = %v", err)
	}
	if reply.ParentPostID == nil || *reply.ParentPostID != root.ID {
		t.Errorf("reply ParentPostID = %v, want %d", reply.ParentPostID, root.ID)
	}
	if reply.ThreadRootID != root.ThreadRootID {
		t.Errorf("reply ThreadRootID = %d, want parent's %d", reply.ThreadRootID, root.ThreadRootID)
	}

	// A nested reply inherits the same thread identity, copied from its parent.
	nested, err := svc.Create(3, "nested", &reply.ID)
	if err != nil {
		t.Fatalf("Create() nested error = %v", err)
	}
	if nested.ThreadRootID != root.ID {
		t.Errorf("nested ThreadRootID = %d, want root id %d", nested.ThreadRootID, root.ID)
	}

	replies, err := svc.Replies(root.ID)
	if err != nil {
		t.Fatalf("Replies() error = %v", err)
	}
	if len(replies) != 1 || replies[0].ID != reply.ID {
		t.Errorf("Replies(root) = %v, want exactly the direct reply %d", replies, reply.ID)
	}
}

func TestPostService_CreateReply_ParentMissing(t *testing.T) {
	gdb := testDB(t)
	svc := NewPostService(gdb)

	missing := uint(999999)
	_, err := svc.Create(1, "orphan", &missing)
	if !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("Create() error = %v, want ErrParentNotFound", err)
	}

	// No write must happen on failure.
	var count int64
	if err := gdb.Model(&models.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 0 {
		t.Errorf("post count after failed create = %d, want 0", count)
	}
}

func TestPostService_Replies_NoneOrMissing(t *testing.T) {
	svc := NewPostService(testDB(t))

	post, err := svc.Create(1, "lonely", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name   string
		postID uint
	}{
		{"post without replies", post.ID},
		{"post that does not exist", 424242},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies, err := svc.Replies(tt.postID)
			if err != nil {
				t.Fatalf("Replies() error = %v", err)
			}
			if replies == nil || len(replies) != 0 {
				t.Errorf("Replies() = %v, want empty non-nil slice", replies)
			}
		})
	}
}

func TestPostService_Delete_Cascade(t *testing.T) {
	gdb := testDB(t)
	svc := NewPostService(gdb)

	// root with two direct replies, one of which has a grandchild
	root, _ := svc.Create(1, "root", nil)
	r1, _ := svc.Create(2, "reply 1", &root.ID)
	r2, _ := svc.Create(3, "reply 2", &root.ID)
	g1, err := svc.Create(1, "grandchild", &r1.ID)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := svc.Delete(root.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var count int64
	if err := gdb.Model(&models.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 0 {
		t.Errorf("post count after cascade delete = %d, want 0", count)
	}

	for _, id := range []uint{root.ID, r1.ID, r2.ID, g1.ID} {
		replies, err := svc.Replies(id)
		if err != nil {
			t.Fatalf("Replies(%d) error = %v", id, err)
		}
		if len(replies) != 0 {
			t.Errorf("Replies(%d) after delete = %v, want empty", id, replies)
		}
		if _, err := svc.ByID(id); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("ByID(%d) after delete error = %v, want ErrPostNotFound", id, err)
		}
	}
}

func TestPostService_Delete_KeepsSiblingsOutsideSubtree(t *testing.T) {
	svc := NewPostService(testDB(t))

	root, _ := svc.Create(1, "root", nil)
	kept, _ := svc.Create(2, "kept reply", &root.ID)
	removed, _ := svc.Create(3, "removed reply", &root.ID)
	if _, err := svc.Create(4, "removed grandchild", &removed.ID); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := svc.Delete(removed.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.ByID(kept.ID); err != nil {
		t.Errorf("sibling outside the subtree was removed: %v", err)
	}
	replies, err := svc.Replies(root.ID)
	if err != nil {
		t.Fatalf("Replies() error = %v", err)
	}
	if len(replies) != 1 || replies[0].ID != kept.ID {
		t.Errorf("Replies(root) = %v, want only the kept reply", replies)
	}
}

func TestPostService_Delete_CorruptedCycle(t *testing.T) {
	gdb := testDB(t)
	svc := NewPostService(gdb)

	root, err := svc.Create(1, "root", nil)
	if err != nil {
		t.Fatalf("Create() root error = %v", err)
	}
	reply, err := svc.Create(2, "reply", &root.ID)
	if err != nil {
		t.Fatalf("Create() reply error = %v", err)
	}

	// Create cannot produce a cycle, so simulate a malformed external write
	// that turns root and reply into each other's parent.
	if err := gdb.Exec("UPDATE posts SET parent_post_id = ? WHERE id = ?", reply.ID, root.ID).Error; err != nil {
		t.Fatalf("corrupt reply graph: %v", err)
	}

	if err := svc.Delete(root.ID); !errors.Is(err, ErrThreadCycle) {
		t.Fatalf("Delete() error = %v, want ErrThreadCycle", err)
	}

	// The fault is detected during collection, before any delete runs.
	var count int64
	if err := gdb.Model(&models.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 2 {
		t.Errorf("post count after aborted delete = %d, want 2", count)
	}
}

func TestPostService_Delete_MissingID(t *testing.T) {
	svc := NewPostService(testDB(t))

	// Deleting an id that no longer exists is an idempotent no-op.
	if err := svc.Delete(31337); err != nil {
		t.Errorf("Delete() on missing id error = %v, want nil", err)
	}
}

func TestPostService_Feed(t *testing.T) {
	gdb := testDB(t)
	svc := NewPostService(gdb)

	// Empty collection yields an empty feed.
	feed, err := svc.Feed()
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("Feed() on empty collection = %v, want empty", feed)
	}

	ids := make(map[uint]bool)
	for i := 0; i < 7; i++ {
		p, err := svc.Create(1, "post", nil)
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		ids[p.ID] = true

		feed, err := svc.Feed()
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		want := i + 1
		if want > 5 {
			want = 5
		}
		if len(feed) != want {
			t.Fatalf("Feed() with %d posts returned %d, want %d", i+1, len(feed), want)
		}
		seen := make(map[uint]bool)
		for _, p := range feed {
			if !ids[p.ID] {
				t.Errorf("Feed() returned unknown post %d", p.ID)
			}
			if seen[p.ID] {
				t.Errorf("Feed() returned duplicate post %d", p.ID)
			}
			seen[p.ID] = true
		}
	}
}

func TestSamplePosts(t *testing.T) {
	mk := func(n int) []models.Post {
		posts := make([]models.Post, n)
		for i := range posts {
			posts[i] = models.Post{ID: uint(i + 1)}
		}
		return posts
	}

	tests := []struct {
		name    string
		posts   []models.Post
		n       int
		wantLen int
	}{
		{"empty input", mk(0), 5, 0},
		{"fewer posts than sample size", mk(3), 5, 3},
		{"exactly sample size", mk(5), 5, 5},
		{"more posts than sample size", mk(50), 5, 5},
		{"zero sample size", mk(10), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := samplePosts(tt.posts, tt.n)
			if len(got) != tt.wantLen {
				t.Fatalf("samplePosts() len = %d, want %d", len(got), tt.wantLen)
			}
			seen := make(map[uint]bool)
			for _, p := range got {
				if p.ID == 0 || p.ID > uint(len(tt.posts)) {
					t.Errorf("samplePosts() returned post %d outside the collection", p.ID)
				}
				if seen[p.ID] {
					t.Errorf("samplePosts() returned duplicate post %d", p.ID)
				}
				seen[p.ID] = true
			}
		})
	}
}
