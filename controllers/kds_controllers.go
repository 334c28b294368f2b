package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-floor-sync/kds"
	"github.com/yeremiapane/restaurant-floor-sync/middlewares"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // terminal berjalan di jaringan lokal restoran
	},
}

type KDSController struct {
	Hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{Hub: hub}
}

// KDSHandler -> endpoint WebSocket; identitas opsional dari middleware WebSocketIdentity
func (kc *KDSController) KDSHandler(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := kc.Hub.Accept(ws, identity)
	kc.Hub.ReadPump(client)
}

// GetPresence -> snapshot presence yang sama dengan yang di-broadcast
func (kc *KDSController) GetPresence(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Presence", kc.Hub.Presence())
}
