package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/metrics"
	"github.com/tchapgouv/rps/internal/utils"
)

// userClassification classifies a user ID without any network call:
// external/internal, homeserver host and the derived display labels
func userClassification(svc usersService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := utils.Unescape(c.Param("user_id"))
		if !utils.IsValidUserID(userID) {
			return badRequest(c)
		}

		host := svc.Host(userID)
		external := svc.IsExternal(userID)
		outcome := "internal"
		if external {
			outcome = "external"
		}
		metrics.IncPolicyChecks("user_classification", outcome)

		return c.JSON(http.StatusOK, map[string]any{
			"user_id":           userID,
			"external":          external,
			"host":              host,
			"host_display_name": svc.HostDisplayName(host),
			"display_name":      svc.DisplayName(userID),
		})
	}
}

func userProfile(svc usersService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := utils.Unescape(c.Param("user_id"))
		if !utils.IsValidUserID(userID) {
			return badRequest(c)
		}

		user, err := svc.FindUser(c.Request().Context(), id.UserID(userID))
		if err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func userStatus(svc usersService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := utils.Unescape(c.Param("user_id"))
		if !utils.IsValidUserID(userID) {
			return badRequest(c)
		}

		inactive, err := svc.IsAccountInactive(c.Request().Context(), id.UserID(userID))
		if err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"active": !inactive})
	}
}

// emailPolicy answers whether an email address may join the federation,
// whether it maps to an external homeserver, and (when the host query param
// is given) whether it is bound to that specific homeserver
func emailPolicy(svc usersService) echo.HandlerFunc {
	return func(c echo.Context) error {
		address := c.QueryParam("address")
		if !utils.IsValidEmail(address) {
			return badRequest(c)
		}
		ctx := c.Request().Context()

		authorized, err := svc.IsEmailAuthorized(ctx, address)
		if err != nil {
			return matrixError(c, err)
		}
		external, err := svc.IsEmailBoundToExternalHost(ctx, address)
		if err != nil {
			return matrixError(c, err)
		}

		outcome := "unauthorized"
		if authorized {
			outcome = "authorized"
		}
		metrics.IncPolicyChecks("email_policy", outcome)

		resp := map[string]any{
			"authorized": authorized,
			"external":   external,
		}
		if host := c.QueryParam("host"); host != "" {
			bound, err := svc.IsEmailBound(ctx, address, host)
			if err != nil {
				return matrixError(c, err)
			}
			resp["bound"] = bound
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// requestRenewal asks the homeserver to send an account validity renewal email
// for the service account
func requestRenewal(svc accountService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.RequestRenewalEmail(c.Request().Context()); err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// feature answers whether a feature is enabled for a homeserver
// (the configured one unless overridden by the host query param)
func feature(svc featuresService, cfg configService) echo.HandlerFunc {
	return func(c echo.Context) error {
		featureID := c.Param("feature_id")
		if featureID == "" {
			return badRequest(c)
		}

		host := c.QueryParam("host")
		if host == "" {
			host = cfg.Get().Homeserver()
		}
		return c.JSON(http.StatusOK, map[string]any{
			"feature": featureID,
			"host":    host,
			"enabled": svc.IsEnabled(featureID, host),
		})
	}
}
