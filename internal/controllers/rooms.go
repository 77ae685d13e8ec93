package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/metrics"
	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/services"
	"github.com/tchapgouv/rps/internal/utils"
)

func accessRule(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID := utils.Unescape(c.Param("room_id"))
		if roomID == "" {
			return badRequest(c)
		}

		rule, err := svc.GetAccessRule(c.Request().Context(), id.RoomID(roomID))
		if err != nil {
			return matrixError(c, err)
		}
		metrics.IncPolicyChecks("access_rule", rule.Identifier())
		return c.JSON(http.StatusOK, map[string]string{model.AccessRulesContentKey: rule.Identifier()})
	}
}

func category(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID := utils.Unescape(c.Param("room_id"))
		if roomID == "" {
			return badRequest(c)
		}

		cat, err := svc.Category(c.Request().Context(), id.RoomID(roomID))
		if err != nil {
			return matrixError(c, err)
		}
		metrics.IncPolicyChecks("category", string(cat))
		return c.JSON(http.StatusOK, map[string]string{"category": string(cat)})
	}
}

func federation(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID := utils.Unescape(c.Param("room_id"))
		if roomID == "" {
			return badRequest(c)
		}

		federated, err := svc.IsFederated(c.Request().Context(), id.RoomID(roomID))
		if err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"federated": federated})
	}
}

func retention(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID := utils.Unescape(c.Param("room_id"))
		if roomID == "" {
			return badRequest(c)
		}

		days, err := svc.RetentionDays(c.Request().Context(), id.RoomID(roomID))
		if err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]int{"days": days})
	}
}

func lastAdmin(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID := utils.Unescape(c.Param("room_id"))
		userID := utils.Unescape(c.Param("user_id"))
		if roomID == "" || !utils.IsValidUserID(userID) {
			return badRequest(c)
		}

		last, err := svc.IsLastAdministrator(c.Request().Context(), id.RoomID(roomID), id.UserID(userID))
		if err != nil {
			return matrixError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"last_admin": last})
	}
}

// createRoom provisions a room from the posted intent.
// A room that was created but whose follow-up step failed is still reported
// with its room ID, so the caller doesn't re-create it.
func createRoom(svc roomsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var params model.CreateRoomParams
		if err := c.Bind(&params); err != nil {
			return badRequest(c)
		}

		roomID, err := svc.CreateRoomRetrying(c.Request().Context(), &params, createRoomRetries)
		if err != nil {
			var finErr *services.FinalizationError
			if errors.As(err, &finErr) {
				metrics.RoomsCreated.Inc()
				return c.JSON(http.StatusAccepted, map[string]string{
					"room_id": finErr.RoomID.String(),
					"warning": finErr.Error(),
				})
			}
			if errors.Is(err, services.ErrInvalidAvatarURL) {
				return badRequest(c)
			}
			return matrixError(c, err)
		}

		metrics.RoomsCreated.Inc()
		return c.JSON(http.StatusCreated, map[string]string{"room_id": roomID.String()})
	}
}

// findDiscussion returns the canonical 1:1 room with the counterpart
// (a matrix user ID or an email address used for a pending invite)
func findDiscussion(svc discussionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		counterpart := utils.Unescape(c.Param("user_id"))
		if counterpart == "" {
			return badRequest(c)
		}

		includeInvite := queryBool(c, "include_invite", true)
		autoJoin := queryBool(c, "auto_join", true)
		discussion, err := svc.Find(c.Request().Context(), counterpart, includeInvite, autoJoin)
		if err != nil {
			return matrixError(c, err)
		}
		if discussion.Status != model.DiscussionNone {
			metrics.DiscussionsReused.Inc()
		}
		return c.JSON(http.StatusOK, discussion)
	}
}

func sendEmailInvite(svc inviteService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Address string `json:"address"`
		}
		if err := c.Bind(&req); err != nil || !utils.IsValidEmail(req.Address) {
			return badRequest(c)
		}

		status, err := svc.SendEmailInvite(c.Request().Context(), req.Address)
		if err != nil {
			return matrixError(c, err)
		}
		if status.Result == model.InviteSent {
			metrics.InvitesSent.Inc()
		}
		return c.JSON(http.StatusOK, status)
	}
}

func queryBool(c echo.Context, name string, defaultValue bool) bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
