package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Announcement is a feed post. An empty target list means every branch.
type Announcement struct {
	ID              string    `json:"id"`
	BranchID        string    `json:"branch_id,omitempty"`
	TargetBranchIDs []string  `json:"target_branch_ids"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ContentHTML     string    `json:"content_html,omitempty"`
	AuthorID        string    `json:"author_id"`
	IsPinned        bool      `json:"is_pinned"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	ClickCount int      `json:"click_count"`
	ViewCount  int      `json:"view_count"`
	ViewerIDs  []string `json:"viewer_ids"`
}

// Targeting is the subset of a create or update payload that decides where a
// post is published.
type Targeting struct {
	PublishToAll    bool
	TargetBranchIDs []string
	BranchID        string
}

// UniqueIDs trims, drops blanks and dedupes, keeping first-seen order.
func UniqueIDs(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ResolveTargetBranches returns the empty set for global posts, otherwise the
// explicit list merged with the legacy single branch id.
func ResolveTargetBranches(t Targeting) ([]string, error) {
	if t.PublishToAll {
		return []string{}, nil
	}
	ids := UniqueIDs(append(append([]string{}, t.TargetBranchIDs...), t.BranchID))
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: provide branch_id or target_branch_ids when publish_to_all is false", ErrValidation)
	}
	return ids, nil
}

// TargetBranches folds the legacy branch id into the stored list.
func (a *Announcement) TargetBranches() []string {
	return UniqueIDs(append(append([]string{}, a.TargetBranchIDs...), a.BranchID))
}

func (a *Announcement) IsGlobal() bool { return len(a.TargetBranches()) == 0 }

// ApplyTargets stores a resolved target list. A single target is mirrored
// into the legacy field.
func (a *Announcement) ApplyTargets(ids []string) {
	a.TargetBranchIDs = ids
	a.BranchID = ""
	if len(ids) == 1 {
		a.BranchID = ids[0]
	}
}

// IsVisible: global posts are visible to everyone; targeted posts need a
// non-empty intersection with the viewer's branches.
func IsVisible(post *Announcement, viewer map[string]struct{}) bool {
	targets := post.TargetBranches()
	if len(targets) == 0 {
		return true
	}
	for _, id := range targets {
		if _, ok := viewer[id]; ok {
			return true
		}
	}
	return false
}

// Scope is the set of branches a viewer may read. Unrestricted scope sees
// every post.
type Scope struct {
	Unrestricted bool
	Branches     map[string]struct{}
}

func UnrestrictedScope() Scope { return Scope{Unrestricted: true} }

func BranchScope(ids ...string) Scope {
	s := Scope{Branches: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Branches[id] = struct{}{}
	}
	return s
}

func (s Scope) Contains(branchID string) bool {
	if s.Unrestricted {
		return true
	}
	_, ok := s.Branches[branchID]
	return ok
}

func VisiblePostsForScope(posts []*Announcement, scope Scope) []*Announcement {
	if scope.Unrestricted {
		return posts
	}
	out := make([]*Announcement, 0, len(posts))
	for _, p := range posts {
		if IsVisible(p, scope.Branches) {
			out = append(out, p)
		}
	}
	return out
}

// SortAnnouncements puts pinned posts first, then newest first. Equal keys
// keep their input order.
func SortAnnouncements(posts []*Announcement) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// RecordClick counts every click.
func (a *Announcement) RecordClick() { a.ClickCount++ }

// RecordView counts the view and remembers the viewer once.
func (a *Announcement) RecordView(viewerID string) {
	a.ViewCount++
	for _, id := range a.ViewerIDs {
		if id == viewerID {
			return
		}
	}
	a.ViewerIDs = append(a.ViewerIDs, viewerID)
}

var (
	htmlTag     = regexp.MustCompile(`<[^>]+>`)
	multiSpace  = regexp.MustCompile(`\s+`)
	htmlImgSrc  = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	imageURLExp = regexp.MustCompile(`(?i)(https?://\S+\.(?:png|jpg|jpeg|webp|gif))`)
)

// PlainTextFromHTML strips tags and collapses whitespace.
func PlainTextFromHTML(html string) string {
	text := htmlTag.ReplaceAllString(html, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}

// ExtractImageURL prefers the first <img> in the rich content and falls back
// to an image-like URL in the plain text.
func ExtractImageURL(html, plain string) string {
	if strings.TrimSpace(html) != "" {
		if m := htmlImgSrc.FindStringSubmatch(html); m != nil {
			if u := strings.TrimSpace(m[1]); u != "" {
				return u
			}
		}
	}
	if m := imageURLExp.FindStringSubmatch(plain); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// AnnouncementAnalytics is attached to staff detail views.
type AnnouncementAnalytics struct {
	TotalFCMUsers int64 `json:"total_fcm_users"`
	ClickCount    int   `json:"click_count"`
	ViewCount     int   `json:"view_count"`
	UniqueViewers int   `json:"unique_viewers"`
}

// AnnouncementView is the serialized form returned to clients.
type AnnouncementView struct {
	ID                string                 `json:"id"`
	Title             string                 `json:"title"`
	Content           string                 `json:"content"`
	ContentHTML       *string                `json:"content_html"`
	ImageURL          *string                `json:"image_url"`
	PublishToAll      bool                   `json:"publish_to_all"`
	TargetBranchIDs   []string               `json:"target_branch_ids"`
	TargetBranchNames []string               `json:"target_branch_names"`
	BranchID          *string                `json:"branch_id"`
	AuthorID          string                 `json:"author_id"`
	AuthorName        string                 `json:"author_name"`
	IsPinned          bool                   `json:"is_pinned"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Analytics         *AnnouncementAnalytics `json:"analytics,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Serialize renders a post with derived fields. Names missing from the
// lookup maps fall back to the branch id and an empty author name.
func Serialize(post *Announcement, authorNames, branchNames map[string]string) AnnouncementView {
	targets := post.TargetBranches()
	plain := strings.TrimSpace(post.Content)
	if plain == "" && strings.TrimSpace(post.ContentHTML) != "" {
		plain = PlainTextFromHTML(post.ContentHTML)
	}

	names := make([]string, 0, len(targets))
	for _, id := range targets {
		if name, ok := branchNames[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}

	branchID := post.BranchID
	if branchID == "" && len(targets) == 1 {
		branchID = targets[0]
	}

	return AnnouncementView{
		ID:                post.ID,
		Title:             post.Title,
		Content:           plain,
		ContentHTML:       optional(post.ContentHTML),
		ImageURL:          optional(ExtractImageURL(post.ContentHTML, plain)),
		PublishToAll:      len(targets) == 0,
		TargetBranchIDs:   targets,
		TargetBranchNames: names,
		BranchID:          optional(branchID),
		AuthorID:          post.AuthorID,
		AuthorName:        authorNames[post.AuthorID],
		IsPinned:          post.IsPinned,
		CreatedAt:         post.CreatedAt,
		UpdatedAt:         post.UpdatedAt,
	}
}

// PushContent builds the notification for a published or edited post.
func (a *Announcement) PushContent() (title, body string) {
	title = a.Title
	if a.UpdatedAt.Sub(a.CreatedAt) > 5*time.Second {
		title = "Update: " + a.Title
	}
	body = strings.TrimSpace(a.Content)
	if body == "" {
		body = PlainTextFromHTML(a.ContentHTML)
	}
	if r := []rune(body); len(r) > 100 {
		body = string(r[:100]) + "..."
	}
	return title, body
}
