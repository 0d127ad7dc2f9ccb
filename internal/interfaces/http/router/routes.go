package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/kekhai/backend/internal/infrastructure/logger"
	"github.com/kekhai/backend/internal/interfaces/http/handler"
	"github.com/kekhai/backend/internal/interfaces/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Dependencies carries everything the HTTP layer needs
type Dependencies struct {
	Engine     *appdecl.Engine
	Duplicates *appdecl.DuplicateService
	DB         handler.Pinger
	Logger     *zap.Logger
	HTTP       config.HTTPConfig
	Tracing    middleware.TracingConfig
	Version    string

	// Registerer receives the HTTP metrics; MetricsHandler is served on /metrics.
	// Both are optional.
	Registerer     prometheus.Registerer
	MetricsHandler http.Handler
}

// New builds the gin engine with the middleware chain and every route
func New(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(deps.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = deps.HTTP.CORSAllowOrigins

	engine.Use(
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(deps.Tracing),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(deps.Registerer),
		middleware.CORSWithConfig(cors),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.BodyLimit(deps.HTTP.MaxBodySize),
	)

	system := handler.NewSystemHandler(deps.DB, deps.Version)
	engine.GET("/healthz", system.Health)
	if deps.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	r := NewRouter(engine, WithGroupMiddleware(middleware.Identity(), middleware.SpanEnricher()))
	declarations := handler.NewDeclarationHandler(deps.Engine)
	payments := handler.NewPaymentHandler(deps.Engine)
	r.Register(declarationRoutes(declarations, payments))
	r.Register(participantRoutes(declarations))
	r.Register(paymentRoutes(payments))
	if deps.Duplicates != nil {
		r.Register(duplicateRoutes(handler.NewDuplicateHandler(deps.Duplicates)))
	}
	r.Setup()

	return engine
}

func declarationRoutes(h *handler.DeclarationHandler, payments *handler.PaymentHandler) *DomainGroup {
	return NewDomainGroup("declarations", "/declarations").
		POST("", h.Create).
		GET("", h.ListMine).
		GET("/review", h.ListForReview).
		GET("/:id", h.Get).
		DELETE("/:id", middleware.RequireAdmin(), h.Delete).
		POST("/:id/submit", h.Submit).
		POST("/:id/processing", h.SetProcessing).
		POST("/:id/approve", h.Approve).
		POST("/:id/reject", h.Reject).
		POST("/:id/paid", h.MarkPaid).
		POST("/:id/finalize", h.FinalizeApproval).
		POST("/:id/request", h.SendRequest).
		POST("/:id/request-confirm", h.ConfirmRequest).
		POST("/:id/complete", h.Complete).
		POST("/:id/repair", h.Repair).
		POST("/:id/case-file", h.AssignCaseFileCode).
		POST("/:id/split", h.Split).
		GET("/:id/participants", h.ListParticipants).
		POST("/:id/participants", h.AddParticipant).
		GET("/:id/payment", payments.GetByDeclaration).
		GET("/:id/payments", payments.History).
		POST("/:id/payment/reissue", payments.Reissue)
}

func participantRoutes(h *handler.DeclarationHandler) *DomainGroup {
	return NewDomainGroup("participants", "/participants").
		PUT("/:id", h.UpdateParticipant).
		DELETE("/:id", h.RemoveParticipant)
}

func paymentRoutes(h *handler.PaymentHandler) *DomainGroup {
	return NewDomainGroup("payments", "/payments").
		GET("/:id", h.Get).
		POST("/:id/confirm", h.Confirm).
		POST("/:id/fail", h.Fail).
		POST("/:id/cancel", h.Cancel)
}

func duplicateRoutes(h *handler.DuplicateHandler) *DomainGroup {
	return NewDomainGroup("duplicates", "/duplicates").
		GET("", h.Scan)
}
