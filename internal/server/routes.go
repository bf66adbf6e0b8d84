package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramesius/wez-sonos/internal/api"
	"github.com/ramesius/wez-sonos/internal/apperrors"
	"github.com/ramesius/wez-sonos/internal/device"
	"github.com/ramesius/wez-sonos/internal/events"
)

// deviceView is a device plus its cached state, if fresh.
type deviceView struct {
	device.Device
	State *events.DeviceState `json:"state,omitempty"`
}

type volumeBody struct {
	Volume *int `json:"volume"`
}

type muteBody struct {
	Mute *bool `json:"mute"`
}

// RegisterRoutes wires the control surface onto the router.
func RegisterRoutes(router chi.Router, svc *Service) {
	router.Get("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteResource(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Get("/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		devices := svc.Registry().List()
		views := make([]deviceView, 0, len(devices))
		for _, dev := range devices {
			views = append(views, deviceView{Device: dev, State: svc.Cache().Get(dev.IP)})
		}
		api.WriteList(w, "/v1/devices", views, false)
	})

	router.Route("/v1/devices/{id}", func(r chi.Router) {
		transport := func(action func(ctx context.Context, ip string) error) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				dev, ok := svc.Registry().Get(chi.URLParam(r, "id"))
				if !ok {
					api.WriteError(w, r, apperrors.NewAppError(apperrors.ErrorCodeDeviceNotFound, "device not found", 404, nil))
					return
				}
				ctx, cancel := requestContext(r, svc)
				defer cancel()
				if err := action(ctx, dev.IP); err != nil {
					api.WriteError(w, r, apperrors.FromSoapError(err))
					return
				}
				api.WriteResource(w, http.StatusOK, map[string]string{"status": "ok"})
			}
		}

		r.Post("/play", transport(func(ctx context.Context, ip string) error { return svc.Soap().Play(ctx, ip) }))
		r.Post("/pause", transport(func(ctx context.Context, ip string) error { return svc.Soap().Pause(ctx, ip) }))
		r.Post("/stop", transport(func(ctx context.Context, ip string) error { return svc.Soap().Stop(ctx, ip) }))
		r.Post("/next", transport(func(ctx context.Context, ip string) error { return svc.Soap().Next(ctx, ip) }))
		r.Post("/previous", transport(func(ctx context.Context, ip string) error { return svc.Soap().Previous(ctx, ip) }))

		r.Get("/volume", func(w http.ResponseWriter, r *http.Request) {
			dev, ok := svc.Registry().Get(chi.URLParam(r, "id"))
			if !ok {
				api.WriteError(w, r, apperrors.NewAppError(apperrors.ErrorCodeDeviceNotFound, "device not found", 404, nil))
				return
			}
			ctx, cancel := requestContext(r, svc)
			defer cancel()
			info, err := svc.Soap().GetVolume(ctx, dev.IP)
			if err != nil {
				api.WriteError(w, r, apperrors.FromSoapError(err))
				return
			}
			api.WriteResource(w, http.StatusOK, map[string]int{"volume": info.CurrentVolume})
		})

		r.Put("/volume", func(w http.ResponseWriter, r *http.Request) {
			dev, ok := svc.Registry().Get(chi.URLParam(r, "id"))
			if !ok {
				api.WriteError(w, r, apperrors.NewAppError(apperrors.ErrorCodeDeviceNotFound, "device not found", 404, nil))
				return
			}
			var body volumeBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Volume == nil {
				api.WriteError(w, r, apperrors.NewValidationError("volume is required", nil))
				return
			}
			if *body.Volume < 0 || *body.Volume > 100 {
				api.WriteError(w, r, apperrors.NewValidationError("volume must be 0-100", nil))
				return
			}
			ctx, cancel := requestContext(r, svc)
			defer cancel()
			if err := svc.Soap().SetVolume(ctx, dev.IP, *body.Volume); err != nil {
				api.WriteError(w, r, apperrors.FromSoapError(err))
				return
			}
			api.WriteResource(w, http.StatusOK, map[string]int{"volume": *body.Volume})
		})

		r.Get("/mute", func(w http.ResponseWriter, r *http.Request) {
			dev, ok := svc.Registry().Get(chi.URLParam(r, "id"))
			if !ok {
				api.WriteError(w, r, apperrors.NewAppError(apperrors.ErrorCodeDeviceNotFound, "device not found", 404, nil))
				return
			}
			ctx, cancel := requestContext(r, svc)
			defer cancel()
			info, err := svc.Soap().GetMute(ctx, dev.IP)
			if err != nil {
				api.WriteError(w, r, apperrors.FromSoapError(err))
				return
			}
			api.WriteResource(w, http.StatusOK, map[string]bool{"mute": info.CurrentMute})
		})

		r.Put("/mute", func(w http.ResponseWriter, r *http.Request) {
			dev, ok := svc.Registry().Get(chi.URLParam(r, "id"))
			if !ok {
				api.WriteError(w, r, apperrors.NewAppError(apperrors.ErrorCodeDeviceNotFound, "device not found", 404, nil))
				return
			}
			var body muteBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Mute == nil {
				api.WriteError(w, r, apperrors.NewValidationError("mute is required", nil))
				return
			}
			ctx, cancel := requestContext(r, svc)
			defer cancel()
			if err := svc.Soap().SetMute(ctx, dev.IP, *body.Mute); err != nil {
				api.WriteError(w, r, apperrors.FromSoapError(err))
				return
			}
			api.WriteResource(w, http.StatusOK, map[string]bool{"mute": *body.Mute})
		})
	})

	router.Get("/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		manager := svc.Manager()
		if manager == nil {
			api.WriteList(w, "/v1/subscriptions", []events.Info{}, false)
			return
		}
		api.WriteList(w, "/v1/subscriptions", manager.Subscriptions(), false)
	})

	router.Get("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		manager := svc.Manager()
		if manager == nil {
			api.WriteResource(w, http.StatusOK, events.Stats{})
			return
		}
		api.WriteResource(w, http.StatusOK, manager.Stats())
	})

	router.Get("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := svc.Journal().Recent(r.URL.Query().Get("device_ip"), limit)
		if err != nil {
			api.WriteError(w, r, apperrors.NewInternalError("journal query failed"))
			return
		}
		api.WriteList(w, "/v1/events", entries, false)
	})

	router.Get("/v1/events/ws", svc.Hub().HandleWS)
}

// requestContext derives a per-call timeout from the configured device
// timeout, anchored on the request context so client disconnects cancel the
// in-flight SOAP exchange.
func requestContext(r *http.Request, svc *Service) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(svc.cfg.SonosTimeoutMs)*time.Millisecond)
}
