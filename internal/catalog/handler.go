package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/biopeak/backend/internal/telemetry/tracing"
	"github.com/biopeak/backend/pkg"

	"github.com/coocood/freecache"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	oneHour            = 60 * 60
	catalogCacheExpire = oneHour * 12
)

// Handler serves the read-only content catalog. Responses are marshaled
// once and kept in an in-process cache; the catalog never changes within
// a process lifetime.
type Handler struct {
	catalog *Catalog
	cache   *freecache.Cache
}

func NewHandler(catalog *Catalog) *Handler {
	megabyte := 1024 * 1024
	return &Handler{
		catalog: catalog,
		cache:   freecache.NewCache(megabyte),
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	catalogRouter := mainRouter.PathPrefix("/catalog").Subrouter()
	catalogRouter.HandleFunc("/protocols", handler.serve("protocols")).Methods("GET").Name("catalog-protocols")
	catalogRouter.HandleFunc("/supplements", handler.serve("supplements")).Methods("GET").Name("catalog-supplements")
	catalogRouter.HandleFunc("/equipment", handler.serve("equipment")).Methods("GET").Name("catalog-equipment")
	catalogRouter.HandleFunc("/videos", handler.serve("videos")).Methods("GET").Name("catalog-videos")
	catalogRouter.HandleFunc("/levels", handler.serve("levels")).Methods("GET").Name("catalog-levels")
}

func (handler *Handler) serve(section string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracing.GlobalTracer.Start(r.Context(), fmt.Sprintf("handler.catalog.%s", section))
		defer span.End()

		cacheKey := []byte(section)
		if cached, err := handler.cache.Get(cacheKey); err == nil {
			log.Tracef("serving catalog %s from cache", section)
			pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
			return
		}

		payload, err := handler.sectionPayload(section)
		if err != nil {
			log.Errorf("marshal catalog %s: %s", section, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := handler.cache.Set(cacheKey, payload, catalogCacheExpire); err != nil {
			log.Errorf("failed to cache catalog %s: %s", section, err)
		}

		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, payload)
	}
}

func (handler *Handler) sectionPayload(section string) ([]byte, error) {
	switch section {
	case "protocols":
		return json.Marshal(handler.catalog.Protocols)
	case "supplements":
		return json.Marshal(handler.catalog.Supplements)
	case "equipment":
		return json.Marshal(handler.catalog.Equipment)
	case "videos":
		return json.Marshal(handler.catalog.Videos)
	case "levels":
		return json.Marshal(handler.catalog.Levels)
	default:
		return nil, fmt.Errorf("unknown catalog section %q", section)
	}
}
