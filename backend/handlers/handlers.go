package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nanopets/giftbot/backend/models"
	"github.com/nanopets/giftbot/backend/utils"
	"github.com/nanopets/giftbot/giftbot/logger"
	"github.com/nanopets/giftbot/internal/domain/auth"
	"github.com/nanopets/giftbot/internal/domain/daily"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/fusion"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/metrics"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WebApp represents the web application with all dependencies
type WebApp struct {
	Authenticator *auth.Authenticator
	Gifts         *gifts.Service
	Daily         *daily.Service
	Fusion        *fusion.Service
	// Store is optional; when set it is pinged by the health check.
	Store Pinger
	// FusionTimeout bounds one fusion completion. Zero means no bound.
	FusionTimeout time.Duration
	Version       string
	Commit        string
}

// observe records a finished workflow call in the logs and metrics.
func observe(workflow, op string, start time.Time, err error, attrs ...any) {
	took := time.Since(start)
	result := "ok"
	if err != nil {
		result = errs.KindOf(err).String()
	}
	metrics.RecordWorkflow(workflow, op, result, took)

	if err != nil && !errs.Is(err, errs.KindInternal) && !errs.Is(err, errs.KindUpstreamFailure) {
		// caller mistakes are not worth an error line
		slog.Info("Workflow rejected",
			append([]any{
				slog.String("type", "wf"),
				slog.String("op", workflow+"."+op),
				slog.String("reason", result),
			}, attrs...)...)
		return
	}
	logger.LogWorkflow(workflow+"."+op, took, err, attrs...)
}

func principal(c *fiber.Ctx) (*gifts.User, error) {
	user, ok := utils.ExtractPrincipal(c)
	if !ok {
		return nil, errs.AuthFailure("invalid authentication")
	}
	return user, nil
}

// HealthCheck reports liveness and store reachability.
func HealthCheck(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := models.NewHealthCheck(webApp.Version)

		if webApp.Store != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := webApp.Store.Ping(ctx); err != nil {
				health.AddComponent("store", "unhealthy", err.Error())
			} else {
				health.AddComponent("store", "healthy", "")
			}
		}

		status := fiber.StatusOK
		if health.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return utils.SendJSON(c, status, health)
	}
}

func DailyStart(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		start := time.Now()
		draft, err := webApp.Daily.Start(c.UserContext(), user)
		observe("daily", "start", start, err, slog.String("user_id", user.ID))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendCreated(c, models.NewDraftResponse(draft), "Daily creation started")
	}
}

func DailyGenerate(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		var req models.DraftRequest
		if err := c.BodyParser(&req); err != nil || req.PendingID == "" {
			return utils.SendBadRequest(c, "Missing pending_id")
		}

		start := time.Now()
		candidates, err := webApp.Daily.Generate(c.UserContext(), user, req.PendingID)
		observe("daily", "generate", start, err, slog.String("pending_id", req.PendingID))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendSuccess(c, fiber.Map{
			"pending_id": req.PendingID,
			"options":    models.NewCandidates(candidates),
		}, "Options generated")
	}
}

func DailyChoose(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		var req models.ChooseRequest
		if err := c.BodyParser(&req); err != nil || req.PendingID == "" || req.OptionIndex == nil {
			return utils.SendBadRequest(c, "Missing pending_id or option_index")
		}

		start := time.Now()
		gift, err := webApp.Daily.Choose(c.UserContext(), user, req.PendingID, *req.OptionIndex)
		observe("daily", "choose", start, err, slog.String("pending_id", req.PendingID))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendCreated(c, models.NewGiftResponse(gift), "Gift created")
	}
}

func FusionStart(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		var req models.FusionStartRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Missing gift_ids")
		}

		start := time.Now()
		job, err := webApp.Fusion.Start(c.UserContext(), user, req.GiftIDs)
		observe("fusion", "start", start, err, slog.Int("parents", len(req.GiftIDs)))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendCreated(c, models.NewFusionJobResponse(job), "Fusion started")
	}
}

func FusionComplete(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		var req models.FusionCompleteRequest
		if err := c.BodyParser(&req); err != nil || req.FusionJobID == "" {
			return utils.SendBadRequest(c, "Missing fusion_job_id")
		}

		ctx := c.UserContext()
		if webApp.FusionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, webApp.FusionTimeout)
			defer cancel()
		}

		start := time.Now()
		gift, err := webApp.Fusion.Complete(ctx, user, req.FusionJobID)
		observe("fusion", "complete", start, err, slog.String("job_id", req.FusionJobID))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendCreated(c, models.NewGiftResponse(gift), "Fusion completed")
	}
}

func GiftsList(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		list, err := webApp.Gifts.ListGifts(c.UserContext(), user)
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendSuccess(c, fiber.Map{
			"gifts": models.NewGiftList(list),
			"user":  models.NewUserResponse(user),
		}, "")
	}
}

func GiftDetail(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		gift, err := webApp.Gifts.GetGift(c.UserContext(), user, c.Params("id"))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendSuccess(c, models.NewGiftResponse(gift), "")
	}
}

func styleNames() []string {
	names := make([]string, len(gifts.Styles))
	for i, s := range gifts.Styles {
		names[i] = string(s)
	}
	return names
}

func StyleGet(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		style, err := webApp.Gifts.GetStyle(c.UserContext(), user)
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendSuccess(c, models.StyleResponse{Style: string(style), Styles: styleNames()}, "")
	}
}

func StyleSet(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := principal(c)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		var req models.StyleRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Missing style")
		}

		style, err := webApp.Gifts.SetStyle(c.UserContext(), user, gifts.Style(req.Style))
		if err != nil {
			return utils.SendDomainError(c, err)
		}
		return utils.SendSuccess(c, models.StyleResponse{Style: string(style), Styles: styleNames()}, "Style updated")
	}
}
