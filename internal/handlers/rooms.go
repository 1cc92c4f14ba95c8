package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/burner-signaling/config"
	"github.com/mossy-p/burner-signaling/internal/middleware"
	"github.com/mossy-p/burner-signaling/internal/rooms"
)

// GetRoom returns the sanitized summary of a room (public). Ended rooms
// remain visible until they are deleted.
func GetRoom(hub *rooms.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := hub.Info(c.Request.Context(), c.Param("roomId"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ICEServers serves the STUN/TURN servers clients should configure their
// peer connections with.
func ICEServers(cfg config.ICEConfig) gin.HandlerFunc {
	servers := iceServers(cfg)
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}

func iceServers(cfg config.ICEConfig) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{}

	var stun []string
	for _, url := range cfg.STUNServers {
		if url = strings.TrimSpace(url); url != "" {
			stun = append(stun, url)
		}
	}
	if len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	if turn := strings.TrimSpace(cfg.TURNServer); turn != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{turn},
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNPassword,
		})
	}
	return servers
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
