package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

type handlers struct {
	svc    ConditionService
	logger *zap.Logger
}

func (h *handlers) routes(c *gin.Context) {
	origin, destination := c.Query("origin"), c.Query("destination")
	if origin == "" || destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin and destination are required"})
		return
	}

	routes, err := h.svc.GetRoutes(c.Request.Context(), origin, destination, c.Query("mode"))
	if err != nil {
		h.logger.Error("get routes failed",
			zap.String("origin", origin),
			zap.String("destination", destination),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *handlers) weather(c *gin.Context) {
	coord, ok := queryCoordinate(c)
	if !ok {
		return
	}

	rec := h.svc.GetWeather(c.Request.Context(), coord.Lat, coord.Lon)
	if rec.Error != "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": rec.Error})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handlers) roadInfo(c *gin.Context) {
	coord, ok := queryCoordinate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.RoadInfo(c.Request.Context(), coord.Lat, coord.Lon))
}

func (h *handlers) segment(c *gin.Context) {
	coord, ok := queryCoordinate(c)
	if !ok {
		return
	}

	res, err := h.svc.Segment(c.Request.Context(), coord.Lat, coord.Lon, c.Query("polyline"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) roadsBBox(c *gin.Context) {
	var box domain.BBox
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"south", &box.South},
		{"west", &box.West},
		{"north", &box.North},
		{"east", &box.East},
	} {
		v, err := strconv.ParseFloat(c.Query(p.name), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", p.name)})
			return
		}
		*p.dst = v
	}

	roads, err := h.svc.RoadsInBBox(c.Request.Context(), box)
	switch {
	case errors.Is(err, domain.ErrInvalidBBox):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("roads in bbox failed", zap.String("bbox", box.Key()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, roadsToFeatureCollection(roads))
}

// queryCoordinate parses lat and lon, writing a 400 when they are unusable.
func queryCoordinate(c *gin.Context) (domain.Coordinate, bool) {
	coord, err := domain.ParseCoordinate(c.Query("lat"), c.Query("lon"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.Coordinate{}, false
	}
	return coord, true
}

func roadsToFeatureCollection(roads []domain.RoadRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range roads {
		line := make(orb.LineString, len(r.Geometry))
		for i, p := range r.Geometry {
			line[i] = orb.Point{p.Lon, p.Lat}
		}
		f := geojson.NewFeature(line)
		f.ID = r.ID
		f.Properties["osm_id"] = r.ID
		f.Properties["name"] = r.DisplayName()
		f.Properties["fclass"] = r.Class
		f.Properties["ref"] = r.Ref
		f.Properties["maxspeed"] = r.MaxSpeed
		f.Properties["oneway"] = r.OneWay
		f.Properties["bridge"] = r.Bridge
		f.Properties["tunnel"] = r.Tunnel
		fc.Append(f)
	}
	return fc
}
