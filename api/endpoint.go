// Package api serves a resource's callback map over http.
//
// The messaging core only depends on the resource.Endpoint interface, this
// package is the default collaborator behind it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aceframe/acebus/ace"
	"github.com/aceframe/acebus/resource"
	"github.com/gin-gonic/gin"
)

// Api endpoint configuration props.
const (
	// interface the api endpoint binds, default 0.0.0.0
	PropApiHost = "api.host"

	// port the api endpoint binds, default 8080, 0 picks a free port
	PropApiPort = "api.port"
)

const shutdownTimeout = 5 * time.Second

var _ resource.Endpoint = (*Endpoint)(nil)

func init() {
	ace.SetDefProp(PropApiHost, "0.0.0.0")
	ace.SetDefProp(PropApiPort, 8080)
}

// Endpoint serves each registered callback at GET /<operation>.
type Endpoint struct {
	server *http.Server
	addr   string
}

func New() *Endpoint {
	return &Endpoint{}
}

// Address the endpoint is actually bound to, valid after Start.
func (e *Endpoint) Addr() string {
	return e.addr
}

// Bind the listener and serve callbacks in the background. Binding happens
// synchronously so address conflicts surface here rather than in a goroutine.
func (e *Endpoint) Start(rail ace.Rail, callbacks resource.Callbacks) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	for name, cb := range callbacks {
		cb := cb
		engine.GET("/"+name, func(c *gin.Context) {
			c.JSON(http.StatusOK, cb())
		})
	}

	bind := fmt.Sprintf("%v:%v", ace.GetPropStr(PropApiHost), ace.GetPropInt(PropApiPort))
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return ace.WrapErrf(err, "failed to bind api endpoint on '%v'", bind)
	}
	e.addr = ln.Addr().String()
	e.server = &http.Server{Handler: engine}

	go func() {
		if serr := e.server.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			rail.Errorf("Api endpoint stopped: %v", serr)
		}
	}()

	rail.Infof("Api endpoint serving on %v", e.addr)
	return nil
}

// Gracefully shut the endpoint down, in-flight requests get shutdownTimeout
// to complete.
func (e *Endpoint) Stop(rail ace.Rail) error {
	if e.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		return ace.WrapErrf(err, "failed to shut down api endpoint")
	}
	rail.Info("Api endpoint stopped")
	return nil
}
