package controllers

import (
	"context"
	"net/http"

	"github.com/etkecc/go-apm"
	echobasicauth "github.com/etkecc/go-echo-basic-auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/metrics"
	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/version"
)

type configService interface {
	Get() *model.Config
}

type usersService interface {
	IsExternal(userID string) bool
	Host(userID string) string
	HostDisplayName(host string) string
	DisplayName(userID string) string
	FindUser(ctx context.Context, userID id.UserID) (*model.User, error)
	IsAccountInactive(ctx context.Context, userID id.UserID) (bool, error)
	IsEmailAuthorized(ctx context.Context, email string) (bool, error)
	IsEmailBoundToExternalHost(ctx context.Context, email string) (bool, error)
	IsEmailBound(ctx context.Context, email, host string) (bool, error)
}

type roomsService interface {
	CreateRoomRetrying(ctx context.Context, params *model.CreateRoomParams, retries int) (id.RoomID, error)
	GetAccessRule(ctx context.Context, roomID id.RoomID) (model.AccessRule, error)
	Category(ctx context.Context, roomID id.RoomID) (model.RoomCategory, error)
	IsFederated(ctx context.Context, roomID id.RoomID) (bool, error)
	RetentionDays(ctx context.Context, roomID id.RoomID) (int, error)
	IsLastAdministrator(ctx context.Context, roomID id.RoomID, userID id.UserID) (bool, error)
}

type discussionService interface {
	Find(ctx context.Context, counterpart string, includeInvite, autoJoin bool) (*model.Discussion, error)
}

type featuresService interface {
	IsEnabled(feature, host string) bool
}

type inviteService interface {
	SendEmailInvite(ctx context.Context, email string) (*model.InviteStatus, error)
}

type accountService interface {
	RequestRenewalEmail(ctx context.Context) error
}

// createRoomRetries on alias collisions before giving up
const createRoomRetries = 3

// ConfigureRouter configures echo router
func ConfigureRouter(
	e *echo.Echo,
	cfg configService,
	usersSvc usersService,
	roomsSvc roomsService,
	discussionSvc discussionService,
	featuresSvc featuresService,
	inviteSvc inviteService,
	accountSvc accountService,
) {
	configureRouter(e)

	e.GET("/metrics", echo.WrapHandler(&metrics.Handler{}), echobasicauth.NewMiddleware(&cfg.Get().Auth.Metrics))

	rl := getRL(10)
	e.GET("/users/:user_id", userClassification(usersSvc), rl)
	e.GET("/users/:user_id/profile", userProfile(usersSvc), rl)
	e.GET("/users/:user_id/status", userStatus(usersSvc), rl)
	e.GET("/email/policy", emailPolicy(usersSvc), rl)
	e.GET("/features/:feature_id", feature(featuresSvc, cfg), rl)

	e.GET("/rooms/:room_id/access_rule", accessRule(roomsSvc), rl)
	e.GET("/rooms/:room_id/category", category(roomsSvc), rl)
	e.GET("/rooms/:room_id/federation", federation(roomsSvc), rl)
	e.GET("/rooms/:room_id/retention", retention(roomsSvc), rl)
	e.GET("/rooms/:room_id/last_admin/:user_id", lastAdmin(roomsSvc), rl)

	a := e.Group("-")
	a.Use(echobasicauth.NewMiddleware(&cfg.Get().Auth.Admin))
	a.POST("/rooms", createRoom(roomsSvc))
	a.GET("/discussions/:user_id", findDiscussion(discussionSvc))
	a.POST("/invites/email", sendEmailInvite(inviteSvc))
	a.POST("/account/renewal", requestRenewal(accountSvc))
}

func configureRouter(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(apm.WithSentry())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{MaxAge: 86400}))
	e.Use(middleware.Gzip())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderServer, version.Server)
			return next(c)
		}
	})
	e.HideBanner = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(true),
		echo.TrustPrivateNet(true),
	)
	e.Any("/_health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
