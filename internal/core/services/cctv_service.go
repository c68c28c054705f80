package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const streamURLTTL = 3600 * time.Second

type CCTVService struct {
	students ports.Repository[domain.Student]
	branches ports.Repository[domain.Branch]
	settings *SettingsService
	hours    domain.ClockWindow
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCCTVService takes the daily window during which streams are offered,
// evaluated in local time.
func NewCCTVService(
	students ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	settings *SettingsService,
	hours domain.ClockWindow,
	logger *logrus.Logger,
) *CCTVService {
	return &CCTVService{
		students: students,
		branches: branches,
		settings: settings,
		hours:    hours,
		logger:   logger,
		now:      time.Now,
	}
}

type StreamInfo struct {
	StreamID string `json:"stream_id"`
	Name     string `json:"name"`
}

type StreamLink struct {
	StreamID  string    `json:"stream_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// authorize checks everything but the stream itself and returns the
// student's branch.
func (s *CCTVService) authorize(ctx context.Context, parent *domain.User, studentID string) (*domain.Branch, error) {
	if !parent.IsParent() {
		return nil, forbiddenf("live view is available to parents only")
	}
	if !parent.HasStudent(studentID) {
		return nil, forbiddenf("student is not linked to your account")
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !st.CCTVEnabled {
		return nil, forbiddenf("live view is disabled")
	}
	open, err := s.hours.Contains(s.now())
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, forbiddenf("live view is available between %s and %s", s.hours.Start, s.hours.End)
	}
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.branches.Get(ctx, student.BranchID)
}

// Streams lists the enabled streams of the student's branch.
func (s *CCTVService) Streams(ctx context.Context, parent *domain.User, studentID string) ([]StreamInfo, error) {
	branch, err := s.authorize(ctx, parent, studentID)
	if err != nil {
		return nil, err
	}
	out := []StreamInfo{}
	for _, c := range branch.CCTVConfigs {
		if c.Enabled {
			out = append(out, StreamInfo{StreamID: c.StreamID, Name: c.Name})
		}
	}
	return out, nil
}

// StreamURL signs a playlist URL valid for one hour.
func (s *CCTVService) StreamURL(ctx context.Context, parent *domain.User, studentID, streamID string) (*StreamLink, error) {
	branch, err := s.authorize(ctx, parent, studentID)
	if err != nil {
		return nil, err
	}
	cfg, ok := branch.Stream(streamID)
	if !ok || !cfg.Enabled {
		return nil, notFoundf("stream %s", streamID)
	}
	expires := s.now().Add(streamURLTTL).UTC().Truncate(time.Second)
	s.logger.WithFields(logrus.Fields{
		"user_id":    parent.ID,
		"student_id": studentID,
		"stream_id":  streamID,
	}).Info("issued stream url")
	return &StreamLink{
		StreamID:  cfg.StreamID,
		Name:      cfg.Name,
		URL:       domain.SignStreamURL(*cfg, studentID, expires),
		ExpiresAt: expires,
		ExpiresIn: int(streamURLTTL.Seconds()),
	}, nil
}
