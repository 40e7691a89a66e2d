package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/mapdocument"
)

func NewInfoService(logger *logpkg.Logger, maxConcurrentExports uint) *InfoService {
	ws := &InfoService{logger, maxConcurrentExports, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger               *logpkg.Logger
	maxConcurrentExports uint
	chi.Router
}

type infoType struct {
	MaxConcurrentExports uint     `json:"maxConcurrentExports"`
	DocumentFormats      []string `json:"documentFormats"`
	LayerTypes           []string `json:"layerTypes"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, infoType{
		MaxConcurrentExports: ws.maxConcurrentExports,
		DocumentFormats:      supportedDocumentFormats,
		LayerTypes: []string{
			mapdocument.LayerTypeTile,
			mapdocument.LayerTypeDynamic,
			mapdocument.LayerTypeHeat,
			mapdocument.LayerTypeMarker,
		},
	})
}
