// Command ecoscand is a stub classification backend for local development.
// It answers /detect with canned detections keyed off the uploaded filename,
// shaped exactly like the production YOLO service, so the client pipeline can
// be exercised without model weights.
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// disposal mirrors the production recommendation mapping.
type disposal struct {
	Action string
	Points int
	Carbon float64
}

var disposalOrder = []string{"bottle", "plastic", "can", "paper", "cardboard", "electronics"}

var disposalTable = map[string]disposal{
	"bottle":      {Action: "Recycle", Points: 10, Carbon: 0.5},
	"plastic":     {Action: "Recycle", Points: 8, Carbon: 0.3},
	"can":         {Action: "Recycle (aluminum)", Points: 8, Carbon: 0.4},
	"paper":       {Action: "Recycle (paper)", Points: 5, Carbon: 0.1},
	"cardboard":   {Action: "Recycle (cardboard)", Points: 6, Carbon: 0.2},
	"electronics": {Action: "E-waste dropoff", Points: 20, Carbon: 1.0},
}

var centers = []gin.H{
	{"id": 1, "name": "GreenCycle Hub", "address": "12 Compost Lane", "lat": 52.52, "lng": 13.405},
	{"id": 2, "name": "EcoPoint Station", "address": "48 Circular Road", "lat": 52.5, "lng": 13.39},
	{"id": 3, "name": "ReUse Depot", "address": "7 Landfill Diversion Way"},
}

func main() {
	var addr string
	var delay time.Duration

	flag.StringVar(&addr, "addr", ":5000", "listen address")
	flag.DurationVar(&delay, "delay", 0, "artificial model latency, for timeout testing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "ecoscand")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model_loaded": true})
	})

	router.GET("/recycling-centers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"centers": centers})
	})

	router.POST("/detect", func(c *gin.Context) {
		reqID := uuid.NewString()

		file, err := c.FormFile("image")
		if err != nil {
			logger.Warn("detect request without image field", "request_id", reqID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing image field"})
			return
		}
		username := c.PostForm("username")

		if delay > 0 {
			time.Sleep(delay)
		}

		detections, recommendations, points, carbon := classify(file.Filename)
		logger.Info("detect",
			"request_id", reqID, "username", username,
			"filename", file.Filename, "bytes", file.Size, "detections", len(detections))

		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"detected_objects": detections,
			"recommendations":  recommendations,
			"eco_points":       points,
			"carbon_saved_kg":  carbon,
			"debug": gin.H{
				"model_loaded":     true,
				"detections_count": len(detections),
			},
		})
	})

	logger.Info("listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal(err)
	}
}

// classify derives canned detections from keywords in the uploaded filename.
// Unrecognized uploads produce an empty detection list, which is a valid
// backend answer, not an error.
func classify(filename string) ([]gin.H, []string, int, float64) {
	name := strings.ToLower(filename)

	detections := []gin.H{}
	recommendations := []string{}
	points := 0
	carbon := 0.0

	for _, label := range disposalOrder {
		d := disposalTable[label]
		if !strings.Contains(name, label) {
			continue
		}
		detections = append(detections, gin.H{
			"name": label,
			"conf": 0.92,
			"bbox": []float64{0.1, 0.1, 0.8, 0.8},
		})
		recommendations = append(recommendations, label+" — "+d.Action)
		points += d.Points
		carbon += d.Carbon
	}

	if len(detections) == 0 {
		recommendations = append(recommendations,
			"No objects detected. Try a clearer photo or different angle.")
	}
	return detections, recommendations, points, carbon
}
