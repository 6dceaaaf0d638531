package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vibecodezero/subscriber-service/internal/api/dto"
	"github.com/vibecodezero/subscriber-service/internal/cache"
	"github.com/vibecodezero/subscriber-service/internal/ratelimit"
	"github.com/vibecodezero/subscriber-service/internal/registry"
	apperrors "github.com/vibecodezero/subscriber-service/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// SubscribersHandler exposes the subscription lifecycle over HTTP.
type SubscribersHandler struct {
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	stats    *cache.StatsCache
}

// NewSubscribersHandler constructs handler.
func NewSubscribersHandler(reg *registry.Registry, limiter *ratelimit.Limiter, stats *cache.StatsCache) *SubscribersHandler {
	return &SubscribersHandler{registry: reg, limiter: limiter, stats: stats}
}

// Subscribe handles POST /api/subscribe.
func (h *SubscribersHandler) Subscribe(c *fiber.Ctx) error {
	if h.limiter != nil && !h.limiter.Allow(c.UserContext(), clientIP(c)) {
		return apperrors.NewRateLimited("too many subscription attempts, please try again later")
	}

	var req dto.SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.registry.Register(c.UserContext(), req.Email, registry.RegisterMeta{
		Source:    req.Source,
		IPAddress: clientIP(c),
		UserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		return err
	}

	switch result.Outcome {
	case registry.OutcomeAlreadyActive:
		return apperrors.NewConflict("ALREADY_SUBSCRIBED", "this email address is already subscribed")
	case registry.OutcomeReactivated:
		h.stats.Invalidate(c.UserContext())
		return c.JSON(dto.SubscribeResponse{
			Success:      true,
			Message:      "welcome back! your subscription has been reactivated",
			SubscriberID: result.Subscriber.ID,
		})
	default:
		h.stats.Invalidate(c.UserContext())
		return c.JSON(dto.SubscribeResponse{
			Success:      true,
			Message:      "subscription complete, thanks for joining",
			SubscriberID: result.Subscriber.ID,
		})
	}
}

// Unsubscribe handles POST /api/unsubscribe.
func (h *SubscribersHandler) Unsubscribe(c *fiber.Ctx) error {
	var req dto.UnsubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.registry.Unsubscribe(c.UserContext(), registry.UnsubscribeRequest{
		Token: strings.TrimSpace(req.Token),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return err
	}

	if result.Outcome == registry.OutcomeUnsubscribed {
		h.stats.Invalidate(c.UserContext())
	}
	return c.JSON(dto.MessageResponse{
		Success: true,
		Message: "you have been unsubscribed",
	})
}

// List handles GET /api/subscribers (admin only).
func (h *SubscribersHandler) List(c *fiber.Ctx) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		return err
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	status := c.Query("status", "all")

	result, err := h.registry.List(c.UserContext(), page, limit, status)
	if err != nil {
		return err
	}

	views := make([]dto.SubscriberView, 0, len(result.Records))
	for _, sub := range result.Records {
		views = append(views, dto.NewSubscriberView(sub))
	}

	totalPages := 0
	if result.TotalCount > 0 {
		totalPages = (result.TotalCount + limit - 1) / limit
	}

	return c.JSON(dto.SubscriberListResponse{
		Success: true,
		Data: dto.SubscriberListData{
			Subscribers: views,
			Pagination: dto.Pagination{
				Page:       page,
				Limit:      limit,
				TotalCount: result.TotalCount,
				TotalPages: totalPages,
			},
		},
	})
}

// Stats handles GET /api/subscribers/stats (admin only).
func (h *SubscribersHandler) Stats(c *fiber.Ctx) error {
	if cached := h.stats.Get(c.UserContext()); cached != nil {
		return c.JSON(dto.StatsResponse{Success: true, Stats: *cached})
	}

	stats, err := h.registry.Statistics(c.UserContext())
	if err != nil {
		return err
	}
	h.stats.Set(c.UserContext(), stats)

	return c.JSON(dto.StatsResponse{Success: true, Stats: *stats})
}

func queryInt(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid query parameter", map[string]any{name: raw})
	}
	return val, nil
}

func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}
