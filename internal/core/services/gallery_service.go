package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Upload is one file taken from a multipart request.
type Upload struct {
	Data        []byte
	ContentType string
	Caption     string
}

func (u Upload) imageExt() (string, error) {
	ext, ok := imageExtensions[u.ContentType]
	if !ok {
		return "", validationf("unsupported image type %q", u.ContentType)
	}
	if len(u.Data) == 0 || len(u.Data) > maxPhotoBytes {
		return "", validationf("photo must be between 1 byte and 5MB")
	}
	return ext, nil
}

type GalleryService struct {
	albums   ports.Repository[domain.Album]
	students ports.Repository[domain.Student]
	photos   ports.ObjectStore
	logger   *logrus.Logger
	now      Clock
}

func NewGalleryService(
	albums ports.Repository[domain.Album],
	students ports.Repository[domain.Student],
	photos ports.ObjectStore,
	logger *logrus.Logger,
) *GalleryService {
	return &GalleryService{albums: albums, students: students, photos: photos, logger: logger, now: systemClock}
}

type AlbumInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	BranchID    *string `json:"branch_id"`
}

func (in AlbumInput) apply(a *domain.Album) {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.BranchID != nil {
		a.BranchID = strings.TrimSpace(*in.BranchID)
	}
}

func (s *GalleryService) scope(ctx context.Context, actor *domain.User) (domain.Scope, error) {
	switch {
	case actor.IsAdmin():
		return domain.UnrestrictedScope(), nil
	case actor.IsParent():
		students, err := linkedStudents(ctx, s.students, actor)
		if err != nil {
			return domain.Scope{}, err
		}
		return domain.BranchScope(branchIDsOf(students)...), nil
	default:
		return domain.BranchScope(actor.BranchID), nil
	}
}

// List returns albums newest first. A branch filter also includes
// school-wide albums.
func (s *GalleryService) List(ctx context.Context, actor *domain.User, branchID string) ([]*domain.Album, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if branchID != "" {
		if !scope.Contains(branchID) {
			return nil, forbiddenf("branch %s is outside your scope", branchID)
		}
		scope = domain.BranchScope(branchID)
	}
	all, err := s.albums.Find(ctx, ports.Query{}.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.VisibleIn(scope) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *GalleryService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Album, error) {
	a, err := s.albums.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !a.VisibleIn(scope) {
		return nil, notFoundf("album %s", id)
	}
	return a, nil
}

// Create adds an album. Non-admin staff default to their own branch.
func (s *GalleryService) Create(ctx context.Context, actor *domain.User, in AlbumInput) (*domain.Album, error) {
	now := s.now()
	a := &domain.Album{ID: newID(), Photos: []domain.Photo{}, CreatedAt: now, UpdatedAt: now, CreatedBy: actor.ID}
	in.apply(a)
	if a.Name == "" {
		return nil, validationf("name is required")
	}
	if a.BranchID == "" && !actor.IsAdmin() {
		a.BranchID = actor.BranchID
	}
	if err := checkBranchWrite(actor, a.BranchID, "albums"); err != nil {
		return nil, err
	}
	if err := s.albums.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *GalleryService) Update(ctx context.Context, actor *domain.User, id string, in AlbumInput) (*domain.Album, error) {
	a, err := s.writable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.apply(a)
	if a.Name == "" {
		return nil, validationf("name is required")
	}
	if err := checkBranchWrite(actor, a.BranchID, "albums"); err != nil {
		return nil, err
	}
	a.UpdatedAt = s.now()
	if err := s.albums.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the album and then, best-effort, its stored photos.
func (s *GalleryService) Delete(ctx context.Context, actor *domain.User, id string) error {
	a, err := s.writable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.albums.Delete(ctx, a.ID); err != nil {
		return err
	}
	for _, p := range a.Photos {
		s.removeObject(ctx, p.Key)
	}
	return nil
}

// AddPhotos stores each upload under the album and appends it. Nothing is
// stored unless every upload is a valid image.
func (s *GalleryService) AddPhotos(ctx context.Context, actor *domain.User, id string, uploads []Upload) (*domain.Album, error) {
	if len(uploads) == 0 {
		return nil, validationf("at least one photo is required")
	}
	if len(uploads) > domain.MaxAlbumUpload {
		return nil, validationf("at most %d photos per upload", domain.MaxAlbumUpload)
	}
	exts := make([]string, len(uploads))
	for i, u := range uploads {
		ext, err := u.imageExt()
		if err != nil {
			return nil, err
		}
		exts[i] = ext
	}
	a, err := s.writable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stored := make([]string, 0, len(uploads))
	for i, u := range uploads {
		key := domain.ObjectKey("gallery", exts[i], a.ID)
		url, err := s.photos.Put(ctx, key, u.Data, u.ContentType)
		if err != nil {
			for _, k := range stored {
				s.removeObject(ctx, k)
			}
			return nil, err
		}
		stored = append(stored, key)
		a.AddPhoto(domain.Photo{
			ID:         newID(),
			URL:        url,
			Key:        key,
			Caption:    strings.TrimSpace(u.Caption),
			CreatedAt:  now,
			UploadedBy: actor.ID,
		})
	}
	a.UpdatedAt = now
	if err := s.albums.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *GalleryService) DeletePhoto(ctx context.Context, actor *domain.User, albumID, photoID string) (*domain.Album, error) {
	a, err := s.writable(ctx, actor, albumID)
	if err != nil {
		return nil, err
	}
	p, ok := a.RemovePhoto(photoID)
	if !ok {
		return nil, notFoundf("photo %s", photoID)
	}
	a.UpdatedAt = s.now()
	if err := s.albums.Save(ctx, a); err != nil {
		return nil, err
	}
	s.removeObject(ctx, p.Key)
	return a, nil
}

func (s *GalleryService) writable(ctx context.Context, actor *domain.User, id string) (*domain.Album, error) {
	a, err := s.albums.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkBranchWrite(actor, a.BranchID, "albums"); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *GalleryService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.photos.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("could not delete gallery photo")
	}
}
