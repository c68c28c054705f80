package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type AnnouncementService struct {
	posts    ports.Repository[domain.Announcement]
	users    ports.Repository[domain.User]
	students ports.Repository[domain.Student]
	branches ports.Repository[domain.Branch]
	notifier *NotificationService
	logger   *logrus.Logger
	now      Clock
}

func NewAnnouncementService(
	posts ports.Repository[domain.Announcement],
	users ports.Repository[domain.User],
	students ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	notifier *NotificationService,
	logger *logrus.Logger,
) *AnnouncementService {
	return &AnnouncementService{
		posts:    posts,
		users:    users,
		students: students,
		branches: branches,
		notifier: notifier,
		logger:   logger,
		now:      systemClock,
	}
}

type AnnouncementInput struct {
	Title           string   `json:"title" validate:"required"`
	Content         string   `json:"content"`
	ContentHTML     string   `json:"content_html"`
	IsPinned        bool     `json:"is_pinned"`
	PublishToAll    bool     `json:"publish_to_all"`
	TargetBranchIDs []string `json:"target_branch_ids"`
	BranchID        string   `json:"branch_id"`
}

type AnnouncementPatch struct {
	Title           *string  `json:"title"`
	Content         *string  `json:"content"`
	ContentHTML     *string  `json:"content_html"`
	IsPinned        *bool    `json:"is_pinned"`
	PublishToAll    *bool    `json:"publish_to_all"`
	TargetBranchIDs []string `json:"target_branch_ids"`
	BranchID        *string  `json:"branch_id"`
}

type ListParams struct {
	BranchID string
	Limit    int
	Offset   int
}

type AnnouncementPage struct {
	Items  []domain.AnnouncementView `json:"items"`
	Total  int                       `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// NormalizePage applies the defaults and bounds of list pagination.
func NormalizePage(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit < 1 || limit > maxPageSize {
		return 0, 0, validationf("limit must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return 0, 0, validationf("offset must not be negative")
	}
	return limit, offset, nil
}

// ScopeFor returns the branches the viewer may read: unrestricted for staff,
// the branches of active linked students for parents.
func (s *AnnouncementService) ScopeFor(ctx context.Context, viewer *domain.User) (domain.Scope, error) {
	if !viewer.IsParent() {
		return domain.UnrestrictedScope(), nil
	}
	students, err := linkedStudents(ctx, s.students, viewer)
	if err != nil {
		return domain.Scope{}, err
	}
	return domain.BranchScope(branchIDsOf(students)...), nil
}

// List pages through the visible posts, pinned first then newest first.
func (s *AnnouncementService) List(ctx context.Context, viewer *domain.User, p ListParams) (*AnnouncementPage, error) {
	limit, offset, err := NormalizePage(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	scope, err := s.ScopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if p.BranchID != "" {
		if !scope.Contains(p.BranchID) {
			return nil, forbiddenf("branch %s is outside your scope", p.BranchID)
		}
		scope = domain.BranchScope(p.BranchID)
	}

	all, err := s.posts.Find(ctx, ports.Query{}.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	visible := domain.VisiblePostsForScope(all, scope)
	domain.SortAnnouncements(visible)

	page := []*domain.Announcement{}
	if offset < len(visible) {
		end := offset + limit
		if end > len(visible) {
			end = len(visible)
		}
		page = visible[offset:end]
	}

	items, err := s.serialize(ctx, page)
	if err != nil {
		return nil, err
	}
	return &AnnouncementPage{Items: items, Total: len(visible), Limit: limit, Offset: offset}, nil
}

// Get returns one post. Staff also receive delivery analytics.
func (s *AnnouncementService) Get(ctx context.Context, viewer *domain.User, id string) (*domain.AnnouncementView, error) {
	post, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	views, err := s.serialize(ctx, []*domain.Announcement{post})
	if err != nil {
		return nil, err
	}
	view := views[0]
	if !viewer.IsParent() {
		analytics := &domain.AnnouncementAnalytics{
			ClickCount:    post.ClickCount,
			ViewCount:     post.ViewCount,
			UniqueViewers: len(post.ViewerIDs),
		}
		if audience, err := s.notifier.ParentsInBranches(ctx, post.TargetBranches()); err == nil {
			for _, u := range audience {
				if len(u.FCMTokens) > 0 {
					analytics.TotalFCMUsers++
				}
			}
		} else {
			s.logger.WithError(err).WithField("announcement_id", id).Warn("could not count audience")
		}
		view.Analytics = analytics
	}
	return &view, nil
}

func (s *AnnouncementService) Create(ctx context.Context, author *domain.User, in AnnouncementInput) (*domain.AnnouncementView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	targets, err := domain.ResolveTargetBranches(domain.Targeting{
		PublishToAll:    in.PublishToAll,
		TargetBranchIDs: in.TargetBranchIDs,
		BranchID:        in.BranchID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkBranchesExist(ctx, targets); err != nil {
		return nil, err
	}

	now := s.now()
	post := &domain.Announcement{
		ID:          newID(),
		Title:       title,
		Content:     strings.TrimSpace(in.Content),
		ContentHTML: in.ContentHTML,
		AuthorID:    author.ID,
		IsPinned:    in.IsPinned,
		CreatedAt:   now,
		UpdatedAt:   now,
		ViewerIDs:   []string{},
	}
	if post.Content == "" && strings.TrimSpace(post.ContentHTML) != "" {
		post.Content = domain.PlainTextFromHTML(post.ContentHTML)
	}
	post.ApplyTargets(targets)

	if err := s.posts.Insert(ctx, post); err != nil {
		return nil, err
	}
	s.push(ctx, post)
	return s.view(ctx, post)
}

// Update merges the patch over the stored post field by field. Touching any
// targeting field re-resolves the target set from the merged values, so a
// stored legacy branch id is kept unless the patch replaces it.
func (s *AnnouncementService) Update(ctx context.Context, actor *domain.User, id string, p AnnouncementPatch) (*domain.AnnouncementView, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.PublishToAll != nil || p.TargetBranchIDs != nil || p.BranchID != nil {
		t := domain.Targeting{
			PublishToAll:    post.IsGlobal(),
			TargetBranchIDs: post.TargetBranchIDs,
			BranchID:        post.BranchID,
		}
		if p.PublishToAll != nil {
			t.PublishToAll = *p.PublishToAll
		}
		if p.TargetBranchIDs != nil {
			t.TargetBranchIDs = p.TargetBranchIDs
		}
		if p.BranchID != nil {
			t.BranchID = *p.BranchID
		}
		targets, err := domain.ResolveTargetBranches(t)
		if err != nil {
			return nil, err
		}
		if err := s.checkBranchesExist(ctx, targets); err != nil {
			return nil, err
		}
		post.ApplyTargets(targets)
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, validationf("title must not be empty")
		}
		post.Title = title
	}
	if p.ContentHTML != nil {
		post.ContentHTML = *p.ContentHTML
		if p.Content == nil {
			post.Content = domain.PlainTextFromHTML(post.ContentHTML)
		}
	}
	if p.Content != nil {
		post.Content = strings.TrimSpace(*p.Content)
	}
	if p.IsPinned != nil {
		post.IsPinned = *p.IsPinned
	}
	post.UpdatedAt = s.now()

	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	s.push(ctx, post)
	return s.view(ctx, post)
}

func (s *AnnouncementService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if _, err := s.posts.Get(ctx, id); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"announcement_id": id, "by": actor.ID}).Info("announcement deleted")
	return nil
}

const (
	EventClick = "click"
	EventView  = "view"
)

// Track records a click or a view. Views are remembered once per viewer.
func (s *AnnouncementService) Track(ctx context.Context, viewer *domain.User, id, event string) error {
	if event != EventClick && event != EventView {
		return validationf("unknown event %q", event)
	}
	post, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return err
	}
	if event == EventClick {
		post.RecordClick()
	} else {
		post.RecordView(viewer.ID)
	}
	return s.posts.Save(ctx, post)
}

func (s *AnnouncementService) visiblePost(ctx context.Context, viewer *domain.User, id string) (*domain.Announcement, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.ScopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if len(domain.VisiblePostsForScope([]*domain.Announcement{post}, scope)) == 0 {
		return nil, forbiddenf("announcement is not published to your branches")
	}
	return post, nil
}

func (s *AnnouncementService) checkBranchesExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	names, err := branchNames(ctx, s.branches, ids)
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return validationf("unknown branches: %s", strings.Join(missing, ", "))
	}
	return nil
}

// serialize renders a page with one author lookup and one branch lookup.
func (s *AnnouncementService) serialize(ctx context.Context, posts []*domain.Announcement) ([]domain.AnnouncementView, error) {
	var authorIDs, branchIDs []string
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
		branchIDs = append(branchIDs, p.TargetBranches()...)
	}
	authorIDs = domain.UniqueIDs(authorIDs)
	branchIDs = domain.UniqueIDs(branchIDs)

	authors := make(map[string]string, len(authorIDs))
	if len(authorIDs) > 0 {
		users, err := s.users.Find(ctx, ports.Where(ports.In("id", authorIDs)))
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			authors[u.ID] = u.FullName
		}
	}
	names, err := branchNames(ctx, s.branches, branchIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AnnouncementView, 0, len(posts))
	for _, p := range posts {
		out = append(out, domain.Serialize(p, authors, names))
	}
	return out, nil
}

func (s *AnnouncementService) view(ctx context.Context, post *domain.Announcement) (*domain.AnnouncementView, error) {
	views, err := s.serialize(ctx, []*domain.Announcement{post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *AnnouncementService) push(ctx context.Context, post *domain.Announcement) {
	title, body := post.PushContent()
	s.notifier.NotifyBranches(ctx, post.TargetBranches(), title, body, map[string]string{
		"type":            "announcement",
		"announcement_id": post.ID,
	})
}
