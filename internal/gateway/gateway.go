package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
	"github.com/studyhive/studyhive-api/pkg/response"
)

// Options tunes connection handling for the websocket endpoint.
type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	AllowedOrigins  []string
}

func (o *Options) applyDefaults() {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 1024
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = 1024
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 64
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
}

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Gateway upgrades authenticated HTTP requests into hub-managed
// websocket connections.
type Gateway struct {
	hub      *Hub
	auth     tokenValidator
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// New constructs a Gateway around an existing hub.
func New(hub *Hub, auth tokenValidator, logger *zap.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	checkOrigin := func(r *http.Request) bool {
		if len(opts.AllowedOrigins) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, allowed := range opts.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}

	return &Gateway{
		hub:    hub,
		auth:   auth,
		logger: logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle authenticates the handshake and hands the connection to the hub.
// The token travels in the `token` query parameter because browser
// websocket clients cannot set an Authorization header.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing token"))
		return
	}
	claims, err := g.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(g.hub, conn, claims, g.opts, g.logger)
	g.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// defaultHub backs the package-level emit helpers used by the
// notification dispatcher. Emitting before Init is a programming error
// and panics.
var defaultHub *Hub

// Init installs the process-wide hub behind the emit helpers.
func Init(hub *Hub) {
	defaultHub = hub
}

func mustHub() *Hub {
	if defaultHub == nil {
		panic("gateway: Init must be called before emitting events")
	}
	return defaultHub
}

// EmitNewResource announces a freshly uploaded resource to a room.
func EmitNewResource(room string, event models.NewResourceEvent) {
	mustHub().Emit(room, models.EventNewResource, event)
}

// EmitNewResourceToAll announces a placement resource to every connected
// client regardless of room membership.
func EmitNewResourceToAll(event models.NewResourceEvent) {
	mustHub().EmitAll(models.EventNewResource, event)
}

// EmitResourceInteraction pushes live counter updates to a room.
func EmitResourceInteraction(room string, event models.ResourceInteractionEvent) {
	mustHub().Emit(room, models.EventResourceInteraction, event)
}

// EmitNotification delivers a stored notification to its owner's room.
func EmitNotification(userID string, notification models.Notification) {
	mustHub().Emit(UserRoom(userID), models.EventNotification, notification)
}
