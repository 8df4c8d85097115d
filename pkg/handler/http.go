package handler

import (
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/foomo/formpersist/pkg/metrics"
	"github.com/foomo/formpersist/pkg/persist"
	"github.com/foomo/formpersist/responses"
	httputils "github.com/foomo/keel/utils/net/http"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	validName = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)
)

type (
	HTTP struct {
		l        *zap.Logger
		path     string
		registry *persist.Registry
	}
	HTTPOption func(*HTTP)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP serves the forms of registry below the base path
func NewHTTP(l *zap.Logger, registry *persist.Registry, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		l:        l.Named("http"),
		path:     "/formpersist",
		registry: registry,
	}

	for _, opt := range opts {
		opt(inst)
	}

	inst.path = strings.TrimSuffix(inst.path, "/")

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithBasePath(v string) HTTPOption {
	return func(o *HTTP) {
		o.path = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, h.path+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	name, action, _ := strings.Cut(rest, "/")

	route, ok := route(r.Method, action)
	if !ok {
		httputils.ServerError(h.l, w, r, http.StatusMethodNotAllowed, errors.Errorf("no route for %s %q", r.Method, action))
		return
	}

	var body []byte
	if r.Method == http.MethodPost && route != RouteFlush {
		if r.Body == nil {
			httputils.BadRequestServerError(h.l, w, r, errors.New("empty request body"))
			return
		}
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			httputils.BadRequestServerError(h.l, w, r, errors.Wrap(err, "failed to read incoming request"))
			return
		}
	}

	status, reply := h.handleRequest(r, route, name, body)

	replyBytes, err := json.Marshal(map[string]interface{}{
		"reply": reply,
	})
	if err != nil {
		h.l.Error("could not encode reply", zap.Error(err))
		httputils.ServerError(h.l, w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(replyBytes)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) handleRequest(r *http.Request, route Route, name string, body []byte) (int, interface{}) {
	start := time.Now()

	reply, err := h.executeRequest(r, route, name, body)
	status := http.StatusOK
	if err != nil {
		status = err.Status
		reply = err
		h.l.Warn("request failed",
			zap.String("route", string(route)),
			zap.String("name", name),
			zap.Int("code", err.Code),
			zap.String("message", err.Message),
		)
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ServiceRequestCounter.WithLabelValues(string(route), result).Inc()
	metrics.ServiceRequestDuration.WithLabelValues(string(route), result).Observe(time.Since(start).Seconds())

	return status, reply
}

func (h *HTTP) executeRequest(r *http.Request, route Route, name string, body []byte) (interface{}, *responses.Error) {
	if !validName.MatchString(name) {
		return nil, responses.NewError(http.StatusBadRequest, responses.CodeInvalidName, "invalid form name: "+name)
	}

	ctx := r.Context()
	form, err := h.registry.Form(ctx, name)
	if err != nil {
		return nil, toError(err)
	}

	switch route {
	case RouteGetState:
		return form.State(), nil
	case RouteSetState:
		state := persist.State{}
		if err := json.Unmarshal(body, &state); err != nil {
			return nil, responses.NewError(http.StatusBadRequest, responses.CodeInvalidJSON, "could not read incoming json "+err.Error())
		}
		scheduled, err := form.SetState(state)
		if err != nil {
			return nil, toError(err)
		}
		return &responses.Change{Scheduled: scheduled, Pending: form.Controller().Pending()}, nil
	case RouteSetValues:
		values := map[string]any{}
		if err := json.Unmarshal(body, &values); err != nil {
			return nil, responses.NewError(http.StatusBadRequest, responses.CodeInvalidJSON, "could not read incoming json "+err.Error())
		}
		scheduled, err := form.SetValues(values)
		if err != nil {
			return nil, toError(err)
		}
		return &responses.Change{Scheduled: scheduled, Pending: form.Controller().Pending()}, nil
	case RouteFlush:
		if err := form.Flush(ctx); err != nil {
			return nil, toError(err)
		}
		return &responses.Flush{Success: true}, nil
	default:
		return nil, responses.NewError(http.StatusNotFound, responses.CodeUnknownRoute, "unknown route: "+string(route))
	}
}

func toError(err error) *responses.Error {
	switch {
	case errors.Is(err, persist.ErrConfiguration):
		return responses.NewError(http.StatusInternalServerError, responses.CodeConfiguration, err.Error())
	case errors.Is(err, persist.ErrSerialization):
		return responses.NewError(http.StatusUnprocessableEntity, responses.CodeSerialization, err.Error())
	case errors.Is(err, persist.ErrDeserialization):
		return responses.NewError(http.StatusInternalServerError, responses.CodeDeserialization, err.Error())
	case errors.Is(err, persist.ErrStorageUnavailable):
		return responses.NewError(http.StatusServiceUnavailable, responses.CodeStorageUnavailable, err.Error())
	case errors.Is(err, persist.ErrClosed):
		return responses.NewError(http.StatusServiceUnavailable, responses.CodeClosed, err.Error())
	default:
		return responses.NewError(http.StatusInternalServerError, responses.CodeInternal, err.Error())
	}
}
