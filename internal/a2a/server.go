package a2a

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/zhengjr9/chat-relay/internal/httputil"
)

// Serve runs the A2A server for ag on port until ctx is cancelled.
func Serve(ctx context.Context, port int, ag agent.Agent) error {
	inner := a2a_app.NewAgentkitA2AServerApp(
		apps.DefaultApiConfig().SetPort(port),
	)
	app := &requestIDApp{BasicApp: inner}
	return app.Run(ctx, &apps.RunConfig{
		AgentLoader: agent.NewSingleLoader(ag),
	})
}

// requestIDApp wraps a BasicApp and installs a middleware on the Gorilla mux
// router that tags every A2A request with a request ID, so agent logs can be
// correlated with access logs.
type requestIDApp struct {
	apps.BasicApp
}

// Run overrides the embedded Run so that apps.Run receives the wrapper and
// calls its SetupRouters.
func (a *requestIDApp) Run(ctx context.Context, config *apps.RunConfig) error {
	return apps.Run(ctx, config, a)
}

func (a *requestIDApp) SetupRouters(router *mux.Router, config *apps.RunConfig) error {
	if err := a.BasicApp.SetupRouters(router, config); err != nil {
		return err
	}
	router.Use(requestIDMiddleware)
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httputil.ExtractRequestID(r)
		w.Header().Set(httputil.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(httputil.ContextWithRequestID(r.Context(), id)))
	})
}
