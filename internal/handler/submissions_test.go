package handler

import (
	"net/http"
	"testing"

	"github.com/francislegacy/legacy/internal/model"
)

type submissionResponse struct {
	Message    string           `json:"message"`
	Submission model.Submission `json:"submission"`
}

func submit(t *testing.T, env *testEnv, cookie *http.Cookie, kind, title string, content map[string]interface{}) model.Submission {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/submissions", toJSON(t, map[string]interface{}{
		"type":    kind,
		"title":   title,
		"content": content,
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var resp submissionResponse
	decodeJSON(t, rr, &resp)
	if resp.Submission.Status != model.SubmissionPending {
		t.Fatalf("status = %q, want pending", resp.Submission.Status)
	}
	return resp.Submission
}

func TestSubmissionCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	cookie := env.login(t, "ruth.francis")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing type", map[string]interface{}{"title": "T", "content": map[string]string{"content": "x"}}},
		{"missing title", map[string]interface{}{"type": "blog", "content": map[string]string{"content": "x"}}},
		{"missing content", map[string]interface{}{"type": "blog", "title": "T"}},
		{"unknown type", map[string]interface{}{"type": "poem", "title": "T", "content": map[string]string{"content": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/submissions", toJSON(t, tt.body), cookie)
			assertStatus(t, rr, http.StatusBadRequest)
		})
	}

	rr := env.do(t, http.MethodPost, "/api/submissions", toJSON(t, map[string]interface{}{
		"type": "blog", "title": "T", "content": map[string]string{"content": "x"},
	}), nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestSubmissionApproveBlogPublishes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminCookie(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	member := env.login(t, "ruth.francis")

	sub := submit(t, env, member, model.SubmissionBlog, "Summer at the lake", map[string]interface{}{
		"content": "We swam every day.",
		"excerpt": "Swimming",
	})

	// Members cannot review.
	rr := env.do(t, http.MethodPatch, "/api/submissions/"+sub.ID+"/review", toJSON(t, map[string]string{
		"status": model.SubmissionApproved,
	}), member)
	assertStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, http.MethodPatch, "/api/submissions/"+sub.ID+"/review", toJSON(t, map[string]string{
		"status": "maybe",
	}), admin)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPatch, "/api/submissions/"+sub.ID+"/review", toJSON(t, map[string]string{
		"status":      model.SubmissionApproved,
		"reviewNotes": "Lovely",
	}), admin)
	assertStatus(t, rr, http.StatusOK)
	var resp submissionResponse
	decodeJSON(t, rr, &resp)
	if resp.Message != "Submission approved successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Submission.PublishedBlogID == nil {
		t.Fatal("approval should record the published blog id")
	}

	// The post is public under the slug derived from the title.
	rr = env.do(t, http.MethodGet, "/api/blog/summer-at-the-lake", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var post model.Post
	decodeJSON(t, rr, &post)
	if post.ID != *resp.Submission.PublishedBlogID || post.Content != "We swam every day." {
		t.Errorf("unexpected post %+v", post)
	}

	// Rejecting afterwards withdraws the post.
	rr = env.do(t, http.MethodPut, "/api/admin/submissions/"+sub.ID, toJSON(t, map[string]string{
		"status": model.SubmissionRejected,
	}), admin)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &resp)
	if resp.Submission.Status != model.SubmissionRejected || resp.Submission.PublishedBlogID != nil {
		t.Errorf("unexpected rejected submission %+v", resp.Submission)
	}

	rr = env.do(t, http.MethodGet, "/api/blog/summer-at-the-lake", nil, nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestSubmissionApproveArchiveAndNews(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminCookie(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	member := env.login(t, "ruth.francis")

	archive := submit(t, env, member, model.SubmissionArchive, "Old map", map[string]interface{}{
		"fileUrl":  "https://cdn.example.com/map.jpg",
		"fileType": "image/jpeg",
		"category": "Photos",
	})
	news := submit(t, env, member, model.SubmissionNews, "New baby", map[string]interface{}{
		"content": "Welcome, Theo!",
	})

	for _, id := range []string{archive.ID, news.ID} {
		rr := env.do(t, http.MethodPatch, "/api/submissions/"+id+"/review", toJSON(t, map[string]string{
			"status": model.SubmissionApproved,
		}), admin)
		assertStatus(t, rr, http.StatusOK)
	}

	rr := env.do(t, http.MethodGet, "/api/archives", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var list archiveListResponse
	decodeJSON(t, rr, &list)
	if list.Count != 1 || list.Data[0].Title != "Old map" {
		t.Errorf("unexpected archives %+v", list)
	}

	rr = env.do(t, http.MethodGet, "/api/news", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var posts []model.Post
	decodeJSON(t, rr, &posts)
	if len(posts) != 1 || posts[0].Title != "New baby" {
		t.Errorf("unexpected news %+v", posts)
	}

	rr = env.do(t, http.MethodGet, "/api/submissions/stats/overview", nil, admin)
	assertStatus(t, rr, http.StatusOK)
	var stats model.SubmissionStats
	decodeJSON(t, rr, &stats)
	if stats.Approved != 2 || stats.Pending != 0 || stats.Total != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSubmissionDeleteRules(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminCookie(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	env.seedMember(t, "Sam", "sam.francis")
	owner := env.login(t, "ruth.francis")
	other := env.login(t, "sam.francis")

	first := submit(t, env, owner, model.SubmissionBlog, "First", map[string]interface{}{"content": "a"})
	second := submit(t, env, owner, model.SubmissionBlog, "Second", map[string]interface{}{"content": "b"})
	third := submit(t, env, owner, model.SubmissionBlog, "Third", map[string]interface{}{"content": "c"})

	t.Run("other member is forbidden", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/submissions/"+first.ID, nil, other)
		assertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("owner deletes pending", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/submissions/"+first.ID, nil, owner)
		assertStatus(t, rr, http.StatusOK)
		rr = env.do(t, http.MethodDelete, "/api/submissions/"+first.ID, nil, owner)
		assertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("reviewed submissions are kept", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/submissions/"+second.ID+"/review", toJSON(t, map[string]string{
			"status": model.SubmissionRejected,
		}), admin)
		assertStatus(t, rr, http.StatusOK)

		rr = env.do(t, http.MethodDelete, "/api/submissions/"+second.ID, nil, owner)
		assertStatus(t, rr, http.StatusBadRequest)
		if got := decodeError(t, rr); got.Message != "Can only delete pending submissions" {
			t.Errorf("message = %q", got.Message)
		}
	})

	t.Run("admin deletes any pending", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/submissions/"+third.ID, nil, admin)
		assertStatus(t, rr, http.StatusOK)
	})
}

func TestSubmissionListings(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminCookie(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	env.seedMember(t, "Sam", "sam.francis")
	ruth := env.login(t, "ruth.francis")
	sam := env.login(t, "sam.francis")

	submit(t, env, ruth, model.SubmissionBlog, "Ruth's story", map[string]interface{}{"content": "a"})
	samSub := submit(t, env, sam, model.SubmissionNews, "Sam's news", map[string]interface{}{"content": "b"})

	rr := env.do(t, http.MethodGet, "/api/submissions/my-submissions", nil, ruth)
	assertStatus(t, rr, http.StatusOK)
	var mine []model.Submission
	decodeJSON(t, rr, &mine)
	if len(mine) != 1 || mine[0].Title != "Ruth's story" {
		t.Errorf("unexpected my-submissions %+v", mine)
	}

	rr = env.do(t, http.MethodGet, "/api/submissions", nil, ruth)
	assertStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, http.MethodGet, "/api/submissions?status=pending", nil, admin)
	assertStatus(t, rr, http.StatusOK)
	var all []model.Submission
	decodeJSON(t, rr, &all)
	if len(all) != 2 {
		t.Errorf("expected 2 pending submissions, got %d", len(all))
	}

	rr = env.do(t, http.MethodGet, "/api/admin/submissions?status=bogus", nil, admin)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodGet, "/api/submissions/"+samSub.ID, nil, admin)
	assertStatus(t, rr, http.StatusOK)
	var got model.Submission
	decodeJSON(t, rr, &got)
	if got.SubmitterKind != model.KindMember || got.Content.String("content") != "b" {
		t.Errorf("unexpected submission %+v", got)
	}
}
