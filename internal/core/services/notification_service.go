package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// NotificationService fans a message out to device tokens in batches of at
// most ports.MaxPushBatch. Delivery is best-effort: failures are logged and
// never returned.
type NotificationService struct {
	users    ports.Repository[domain.User]
	students ports.Repository[domain.Student]
	sender   ports.PushSender
	logger   *logrus.Logger
}

func NewNotificationService(
	users ports.Repository[domain.User],
	students ports.Repository[domain.Student],
	sender ports.PushSender,
	logger *logrus.Logger,
) *NotificationService {
	return &NotificationService{users: users, students: students, sender: sender, logger: logger}
}

// Tokens flattens the device tokens of users, dropping duplicates.
func Tokens(users []*domain.User) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range users {
		for _, t := range u.FCMTokens {
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Batches splits tokens into chunks of at most size.
func Batches(tokens []string, size int) [][]string {
	if size <= 0 {
		size = ports.MaxPushBatch
	}
	var out [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
	}
	return out
}

// Send delivers to every token and reports the summed result.
func (s *NotificationService) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ports.BatchResult {
	var total ports.BatchResult
	for _, batch := range Batches(tokens, ports.MaxPushBatch) {
		res, err := s.sender.Send(ctx, ports.PushMessage{Tokens: batch, Title: title, Body: body, Data: data})
		if err != nil {
			s.logger.WithError(err).WithField("tokens", len(batch)).Warn("push batch failed")
			total.FailureCount += len(batch)
			continue
		}
		total.SuccessCount += res.SuccessCount
		total.FailureCount += res.FailureCount
	}
	return total
}

// ParentsOfStudent returns the active parent accounts linked to a student.
func (s *NotificationService) ParentsOfStudent(ctx context.Context, studentID string) ([]*domain.User, error) {
	users, err := s.users.Find(ctx, ports.Where(
		ports.Eq("role", domain.RoleParent),
		ports.Contains("student_ids", studentID),
	))
	if err != nil {
		return nil, err
	}
	return activeOnly(users), nil
}

// ParentsInBranches returns active parents with at least one active student
// in the branches. An empty branch list means every parent.
func (s *NotificationService) ParentsInBranches(ctx context.Context, branchIDs []string) ([]*domain.User, error) {
	parents, err := s.users.Find(ctx, ports.Where(ports.Eq("role", domain.RoleParent)))
	if err != nil {
		return nil, err
	}
	parents = activeOnly(parents)
	if len(branchIDs) == 0 {
		return parents, nil
	}

	students, err := s.students.Find(ctx, ports.Where(ports.In("branch_id", branchIDs)))
	if err != nil {
		return nil, err
	}
	inScope := make(map[string]struct{}, len(students))
	for _, st := range students {
		inScope[st.ID] = struct{}{}
	}

	out := make([]*domain.User, 0, len(parents))
	for _, p := range parents {
		for _, id := range p.StudentIDs {
			if _, ok := inScope[id]; ok {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// NotifyStudentParents pushes to the parents of one student.
func (s *NotificationService) NotifyStudentParents(ctx context.Context, studentID, title, body string, data map[string]string) {
	parents, err := s.ParentsOfStudent(ctx, studentID)
	if err != nil {
		s.logger.WithError(err).WithField("student_id", studentID).Warn("could not load parents for notification")
		return
	}
	s.Send(ctx, Tokens(parents), title, body, data)
}

// NotifyBranches pushes to the parents in the target branches.
func (s *NotificationService) NotifyBranches(ctx context.Context, branchIDs []string, title, body string, data map[string]string) {
	parents, err := s.ParentsInBranches(ctx, branchIDs)
	if err != nil {
		s.logger.WithError(err).WithField("branches", branchIDs).Warn("could not load audience for notification")
		return
	}
	res := s.Send(ctx, Tokens(parents), title, body, data)
	s.logger.WithFields(logrus.Fields{
		"success": res.SuccessCount,
		"failure": res.FailureCount,
	}).Debug("branch notification sent")
}

func activeOnly(users []*domain.User) []*domain.User {
	out := users[:0:0]
	for _, u := range users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out
}
