package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Clock returns the current time. Services stamp documents at second
// precision in UTC so stored timestamps sort lexicographically.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC().Truncate(time.Second) }

func newID() string { return uuid.NewString() }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrValidation}, args...)...)
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrForbidden}, args...)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrNotFound}, args...)...)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrConflict}, args...)...)
}

// linkedStudents loads a parent's active linked students.
func linkedStudents(ctx context.Context, students ports.Repository[domain.Student], parent *domain.User) ([]*domain.Student, error) {
	if len(parent.StudentIDs) == 0 {
		return []*domain.Student{}, nil
	}
	return students.Find(ctx, ports.Where(ports.In("id", parent.StudentIDs)))
}

// branchIDsOf returns the distinct branch ids of the students in first-seen
// order.
func branchIDsOf(students []*domain.Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.BranchID)
	}
	return domain.UniqueIDs(ids)
}

// branchNames resolves names for the given ids in one query.
func branchNames(ctx context.Context, branches ports.Repository[domain.Branch], ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := branches.Find(ctx, ports.Where(ports.In("id", ids)))
	if err != nil {
		return nil, err
	}
	for _, b := range found {
		out[b.ID] = b.Name
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkStaffBranch restricts non-admin staff to their own branch.
func checkStaffBranch(actor *domain.User, branchID string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsParent() {
		return forbiddenf("staff only")
	}
	if actor.BranchID == "" || actor.BranchID != branchID {
		return forbiddenf("branch %s is outside your scope", branchID)
	}
	return nil
}

// checkBranchWrite lets admins manage any record; other staff only their
// own branch's. An empty branch means school-wide.
func checkBranchWrite(actor *domain.User, branchID, what string) error {
	if actor.IsAdmin() {
		return nil
	}
	if branchID == "" {
		return forbiddenf("only admins manage school-wide %s", what)
	}
	return checkStaffBranch(actor, branchID)
}

// checkClassScope applies the attendance scope: admins everywhere,
// coordinators within their branch, other staff within their branch and
// assigned classes.
func checkClassScope(actor *domain.User, branchID, classID string) error {
	if err := checkStaffBranch(actor, branchID); err != nil {
		return err
	}
	if actor.IsAdmin() || actor.Role == domain.RoleCoordinator {
		return nil
	}
	if !actor.AssignedTo(classID) {
		return forbiddenf("class %s is not assigned to you", classID)
	}
	return nil
}
