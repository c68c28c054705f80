package domain

import "time"

// MaxAlbumUpload bounds the photos accepted in one upload request.
const MaxAlbumUpload = 20

type Photo struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Key        string    `json:"key"`
	Caption    string    `json:"caption,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UploadedBy string    `json:"uploaded_by"`
}

// Album is a photo collection. An empty BranchID makes it school-wide.
type Album struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	BranchID      string    `json:"branch_id,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	Photos        []Photo   `json:"photos"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedBy     string    `json:"created_by"`
}

// VisibleIn reports whether viewers limited to scope may see the album.
func (a *Album) VisibleIn(scope Scope) bool {
	return a.BranchID == "" || scope.Contains(a.BranchID)
}

// AddPhoto appends p; the first photo of an album without a cover becomes
// the cover.
func (a *Album) AddPhoto(p Photo) {
	a.Photos = append(a.Photos, p)
	if a.CoverImageURL == "" {
		a.CoverImageURL = p.URL
	}
}

// RemovePhoto drops the photo with id. When it was the cover, the first
// remaining photo takes over.
func (a *Album) RemovePhoto(id string) (Photo, bool) {
	for i, p := range a.Photos {
		if p.ID != id {
			continue
		}
		a.Photos = append(a.Photos[:i:i], a.Photos[i+1:]...)
		if a.CoverImageURL == p.URL {
			a.CoverImageURL = ""
			if len(a.Photos) > 0 {
				a.CoverImageURL = a.Photos[0].URL
			}
		}
		return p, true
	}
	return Photo{}, false
}
