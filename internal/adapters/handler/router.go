package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/adapters/middleware"
	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/core/domain"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth          *AuthHandler
	Users         *RegistrationHandler
	Roles         *RoleHandler
	Students      *StudentHandler
	Attendance    *AttendanceHandler
	Announcements *AnnouncementHandler
	Billing       *BillingHandler
	Settings      *SettingsHandler
	Branches      *BranchHandler
	Holidays      *HolidayHandler
	Gallery       *GalleryHandler
	Activities    *ActivityHandler
	Dashboard     *DashboardHandler
	Mobile        *MobileHandler
	Health        *HealthHandler
}

type RouterOptions struct {
	Metrics *observability.Metrics
	Logger  *logrus.Logger
	CORS    middleware.CORSPolicy
	// FilesDir, when set, serves locally stored objects under /files/.
	FilesDir string
}

func guard(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// NewRouter wires routes to handlers behind authentication and per-module
// permission checks. CORS wraps the whole router so preflight requests are
// answered before route matching.
func NewRouter(h Handlers, auth *middleware.AuthMiddleware, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	if opts.Metrics != nil {
		r.Use(middleware.Instrument(opts.Metrics, opts.Logger))
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	r.HandleFunc("/health/live", h.Health.Health).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	if opts.FilesDir != "" {
		r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir)))).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Auth.Logout).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(auth.Authenticate)

	perm := auth.RequirePermission
	byMethod := auth.RequireModulePermission

	private.HandleFunc("/auth/me", h.Auth.Me).Methods(http.MethodGet)
	private.HandleFunc("/auth/device-token", h.Auth.RegisterDeviceToken).Methods(http.MethodPost)

	// Roles
	roles := byMethod(domain.ModuleRolesPermissions)
	private.Handle("/roles", guard(h.Roles.List, roles)).Methods(http.MethodGet)
	private.Handle("/roles", guard(h.Roles.Create, roles)).Methods(http.MethodPost)
	private.Handle("/roles/modules", guard(h.Roles.Modules, roles)).Methods(http.MethodGet)
	private.Handle("/roles/{key}", guard(h.Roles.Get, roles)).Methods(http.MethodGet)
	private.Handle("/roles/{key}", guard(h.Roles.Update, roles)).Methods(http.MethodPut, http.MethodPatch)

	// Users
	users := byMethod(domain.ModuleUsers)
	private.Handle("/users", guard(h.Users.List, users)).Methods(http.MethodGet)
	private.Handle("/users", guard(h.Users.Register, users)).Methods(http.MethodPost)
	private.Handle("/users/{id}", guard(h.Users.Get, users)).Methods(http.MethodGet)
	private.Handle("/users/{id}", guard(h.Users.UpdateStaff, users)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/users/{id}", guard(h.Users.DeactivateStaff, users)).Methods(http.MethodDelete)
	private.Handle("/users/{id}/password", guard(h.Users.SetPassword, users)).Methods(http.MethodPut)
	private.Handle("/users/{id}/status", guard(h.Users.SetStatus, users)).Methods(http.MethodPut)

	// Students
	students := byMethod(domain.ModuleStudents)
	private.Handle("/students", guard(h.Students.List, students)).Methods(http.MethodGet)
	private.Handle("/students", guard(h.Students.Create, students)).Methods(http.MethodPost)
	private.Handle("/students/{id}", guard(h.Students.Get, students)).Methods(http.MethodGet)
	private.Handle("/students/{id}", guard(h.Students.Update, students)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/students/{id}", guard(h.Students.Archive, students)).Methods(http.MethodDelete)
	private.Handle("/students/{id}/photo", guard(h.Students.UploadPhoto, perm(domain.ModuleStudents, domain.ActionEdit))).Methods(http.MethodPost)
	private.Handle("/students/{id}/parent-account", guard(h.Students.CreateParentAccount, perm(domain.ModuleUsers, domain.ActionAdd))).Methods(http.MethodPost)

	// Attendance
	private.Handle("/attendance", guard(h.Attendance.Get, perm(domain.ModuleAttendance, domain.ActionView))).Methods(http.MethodGet)
	private.Handle("/attendance/classes", guard(h.Attendance.Classes, perm(domain.ModuleAttendance, domain.ActionView))).Methods(http.MethodGet)
	private.Handle("/attendance/students", guard(h.Attendance.Students, perm(domain.ModuleAttendance, domain.ActionView))).Methods(http.MethodGet)
	private.Handle("/attendance/bulk", guard(h.Attendance.MarkBulk, perm(domain.ModuleAttendance, domain.ActionAdd))).Methods(http.MethodPost)
	private.Handle("/attendance/finalize", guard(h.Attendance.Finalize, perm(domain.ModuleAttendance, domain.ActionEdit))).Methods(http.MethodPost)

	// Announcements
	feed := byMethod(domain.ModuleFeed)
	private.Handle("/feed", guard(h.Announcements.List, feed)).Methods(http.MethodGet)
	private.Handle("/feed", guard(h.Announcements.Create, feed)).Methods(http.MethodPost)
	private.Handle("/feed/{id}", guard(h.Announcements.Get, feed)).Methods(http.MethodGet)
	private.Handle("/feed/{id}", guard(h.Announcements.Update, feed)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/feed/{id}", guard(h.Announcements.Delete, feed)).Methods(http.MethodDelete)
	private.Handle("/feed/{id}/track", guard(h.Announcements.Track, perm(domain.ModuleFeed, domain.ActionView))).Methods(http.MethodPost)

	// Billing
	billing := byMethod(domain.ModuleBilling)
	private.Handle("/billing", guard(h.Billing.List, billing)).Methods(http.MethodGet)
	private.Handle("/billing", guard(h.Billing.Create, billing)).Methods(http.MethodPost)
	private.Handle("/billing/{id}/pay", guard(h.Billing.Pay, perm(domain.ModuleBilling, domain.ActionEdit))).Methods(http.MethodPost)
	private.Handle("/billing/{id}/receipt", guard(h.Billing.RegenerateReceipt, perm(domain.ModuleBilling, domain.ActionEdit))).Methods(http.MethodPost)
	private.Handle("/billing/{id}/receipt", guard(h.Billing.DownloadReceipt, billing)).Methods(http.MethodGet)

	// Settings and academic years
	settingsView := perm(domain.ModuleSettings, domain.ActionView)
	settingsEdit := perm(domain.ModuleSettings, domain.ActionEdit)
	private.Handle("/settings", guard(h.Settings.Get, settingsView)).Methods(http.MethodGet)
	private.Handle("/settings/class-options", guard(h.Settings.SetClassOptions, settingsEdit)).Methods(http.MethodPut)
	private.Handle("/settings/fee-structures", guard(h.Settings.SetFeeStructures, settingsEdit)).Methods(http.MethodPut)
	private.Handle("/settings/cctv", guard(h.Settings.SetCCTV, settingsEdit)).Methods(http.MethodPut)
	private.Handle("/settings/academic-year-config", guard(h.Settings.SetAcademicYearConfig, settingsEdit)).Methods(http.MethodPut)
	private.Handle("/settings/banners", guard(h.Settings.AddBanner, settingsEdit)).Methods(http.MethodPost)
	private.Handle("/settings/banners/{index:[0-9]+}", guard(h.Settings.RemoveBanner, settingsEdit)).Methods(http.MethodDelete)
	private.Handle("/academic-years", guard(h.Settings.AcademicYears, settingsView)).Methods(http.MethodGet)
	private.HandleFunc("/academic-years/current", h.Settings.CurrentAcademicYear).Methods(http.MethodGet)

	// Branches
	branches := byMethod(domain.ModuleBranches)
	private.Handle("/branches", guard(h.Branches.List, branches)).Methods(http.MethodGet)
	private.Handle("/branches", guard(h.Branches.Create, branches)).Methods(http.MethodPost)
	private.Handle("/branches/{id}", guard(h.Branches.Get, branches)).Methods(http.MethodGet)
	private.Handle("/branches/{id}", guard(h.Branches.Update, branches)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/branches/{id}", guard(h.Branches.Archive, branches)).Methods(http.MethodDelete)

	// Holidays
	holidays := byMethod(domain.ModuleHolidays)
	private.Handle("/holidays", guard(h.Holidays.List, holidays)).Methods(http.MethodGet)
	private.Handle("/holidays", guard(h.Holidays.Create, holidays)).Methods(http.MethodPost)
	private.Handle("/holidays/{id}", guard(h.Holidays.Get, holidays)).Methods(http.MethodGet)
	private.Handle("/holidays/{id}", guard(h.Holidays.Update, holidays)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/holidays/{id}", guard(h.Holidays.Archive, holidays)).Methods(http.MethodDelete)

	// Gallery
	gallery := byMethod(domain.ModuleGallery)
	galleryEdit := perm(domain.ModuleGallery, domain.ActionEdit)
	private.Handle("/gallery/albums", guard(h.Gallery.List, gallery)).Methods(http.MethodGet)
	private.Handle("/gallery/albums", guard(h.Gallery.Create, gallery)).Methods(http.MethodPost)
	private.Handle("/gallery/albums/{id}", guard(h.Gallery.Get, gallery)).Methods(http.MethodGet)
	private.Handle("/gallery/albums/{id}", guard(h.Gallery.Update, gallery)).Methods(http.MethodPut, http.MethodPatch)
	private.Handle("/gallery/albums/{id}", guard(h.Gallery.Delete, galleryEdit)).Methods(http.MethodDelete)
	private.Handle("/gallery/albums/{id}/photos", guard(h.Gallery.AddPhotos, galleryEdit)).Methods(http.MethodPost)
	private.Handle("/gallery/albums/{id}/photos/{photoID}", guard(h.Gallery.DeletePhoto, galleryEdit)).Methods(http.MethodDelete)

	// Activity log; the service scopes parents to their linked students.
	activitiesAdd := perm(domain.ModuleActivities, domain.ActionAdd)
	private.Handle("/activities", guard(h.Activities.List)).Methods(http.MethodGet)
	private.Handle("/activities", guard(h.Activities.Create, activitiesAdd)).Methods(http.MethodPost)
	private.Handle("/activities/{id}/photos", guard(h.Activities.AddPhoto, activitiesAdd)).Methods(http.MethodPost)

	private.Handle("/dashboard/stats", guard(h.Dashboard.Stats, perm(domain.ModuleDashboard, domain.ActionView))).Methods(http.MethodGet)

	// Parent mobile app
	mobile := perm(domain.ModuleMobile, domain.ActionView)
	cctv := perm(domain.ModuleCCTV, domain.ActionView)
	private.Handle("/mobile/dashboard", guard(h.Mobile.Dashboard, mobile)).Methods(http.MethodGet)
	private.Handle("/mobile/profile", guard(h.Mobile.Profile, mobile)).Methods(http.MethodGet)
	private.Handle("/mobile/attendance/{student_id}", guard(h.Mobile.Attendance, mobile)).Methods(http.MethodGet)
	private.Handle("/mobile/announcements", guard(h.Announcements.List, mobile)).Methods(http.MethodGet)
	private.Handle("/mobile/announcements/{id}", guard(h.Announcements.Get, mobile)).Methods(http.MethodGet)
	private.Handle("/mobile/cctv/{student_id}/streams", guard(h.Mobile.Streams, mobile, cctv)).Methods(http.MethodGet)
	private.Handle("/mobile/cctv/{student_id}/streams/{stream_id}", guard(h.Mobile.StreamURL, mobile, cctv)).Methods(http.MethodGet)

	return middleware.CORS(opts.CORS)(r)
}
