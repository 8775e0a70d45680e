package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"masterclass/cmd/middleware"
	"masterclass/internal/service"
)

type Routers struct {
	Service       service.Service
	SessionSecret string
	TemplatesGlob string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	if r.TemplatesGlob != "" {
		app.LoadHTMLGlob(r.TemplatesGlob)
	}

	// Public pages
	app.GET("/", r.Service.Welcome)
	app.GET("/register", r.Service.RegisterPage)
	app.GET("/register/:program_id", r.Service.RegisterPage)
	app.POST("/submit_registration", r.Service.SubmitRegistration)

	// Session flow
	app.GET("/admin/login", r.Service.AdminLoginPage)
	app.POST("/admin/login", r.Service.AdminLogin)
	app.GET("/admin/logout", r.Service.AdminLogout)

	// Admin pages: unauthenticated browsers get redirected to login
	adminGroup := app.Group("/admin")
	adminGroup.Use(middleware.RequireAdminHTML(r.SessionSecret))
	adminGroup.GET("", r.Service.AdminDashboard)
	adminGroup.GET("/export", r.Service.ExportCSV)
	adminGroup.GET("/receipt/:id", r.Service.DownloadReceipt)

	// Admin JSON API: unauthenticated requests get a 401 envelope
	apiGroup := app.Group("/api")
	apiGroup.Use(middleware.RequireAdminAPI(r.SessionSecret))
	apiGroup.GET("/registrations", r.Service.ListRegistrations)
	apiGroup.GET("/registrations/:id", r.Service.GetRegistration)
	apiGroup.PUT("/registrations/:id", r.Service.UpdateRegistration)
	apiGroup.DELETE("/registrations/:id", r.Service.DeleteRegistration)
	apiGroup.POST("/registrations/bulk-delete", r.Service.BulkDeleteRegistrations)
	apiGroup.POST("/registrations/:id/send-ticket", r.Service.SendTicket)

	return app
}
