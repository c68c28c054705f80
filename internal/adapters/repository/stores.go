package repository

import (
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Stores bundles the typed collections the services use.
type Stores struct {
	Roles         ports.Repository[domain.Role]
	Users         ports.Repository[domain.User]
	Students      ports.Repository[domain.Student]
	AllStudents   ports.Repository[domain.Student]
	Branches      ports.Repository[domain.Branch]
	Attendance    ports.Repository[domain.AttendanceRecord]
	Announcements ports.Repository[domain.Announcement]
	Billings      ports.Repository[domain.Billing]
	Settings      ports.Repository[domain.AppSettings]
	AcademicYears ports.Repository[domain.AcademicYear]
	Holidays      ports.Repository[domain.Holiday]
	Albums        ports.Repository[domain.Album]
	Activities    ports.Repository[domain.Activity]
}

func NewStores(store ports.DocumentStore) *Stores {
	students := NewArchivableCollection(store, Students, func(s *domain.Student) string { return s.ID })
	return &Stores{
		Roles:         NewCollection(store, Roles, func(r *domain.Role) string { return r.Key }).WithIDField("key"),
		Users:         NewCollection(store, Users, func(u *domain.User) string { return u.ID }),
		Students:      students,
		AllStudents:   students.IncludeArchived(),
		Branches:      NewArchivableCollection(store, Branches, func(b *domain.Branch) string { return b.ID }),
		Attendance:    NewCollection(store, AttendanceRecords, func(r *domain.AttendanceRecord) string { return r.ID }),
		Announcements: NewCollection(store, Announcements, func(a *domain.Announcement) string { return a.ID }),
		Billings:      NewCollection(store, Billings, func(b *domain.Billing) string { return b.ID }),
		Settings:      NewCollection(store, SettingsCollection, func(s *domain.AppSettings) string { return s.ID }),
		AcademicYears: NewCollection(store, AcademicYears, func(a *domain.AcademicYear) string { return a.ID }),
		Holidays:      NewArchivableCollection(store, Holidays, func(h *domain.Holiday) string { return h.ID }),
		Albums:        NewCollection(store, Albums, func(a *domain.Album) string { return a.ID }),
		Activities:    NewCollection(store, Activities, func(a *domain.Activity) string { return a.ID }),
	}
}
