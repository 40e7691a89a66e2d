package webservices

import (
	"image/png"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/mapdocument"
	"github.com/jamesrr39/ownmap-image/maprasterer"
	"github.com/jamesrr39/semaphore"
	"github.com/pkg/profile"
)

const (
	maxDocumentSizeBytes  = 10 * 1024 * 1024
	defaultDocumentFormat = "json"
)

var supportedDocumentFormats = []string{"json", "yaml", "toml"}

type ExportService struct {
	logger        *logpkg.Logger
	exporter      *maprasterer.Exporter
	sema          *semaphore.Semaphore
	shouldProfile bool
	chi.Router
}

func NewExportService(logger *logpkg.Logger, exporter *maprasterer.Exporter, maxConcurrentExports uint, shouldProfile bool) *ExportService {
	es := &ExportService{logger, exporter, semaphore.NewSemaphore(maxConcurrentExports), shouldProfile, chi.NewRouter()}

	es.Post("/", es.handlePostExport)

	return es
}

// handlePostExport takes a map document in the request body and responds with the map as a PNG image.
// The document format is given with the "format" query parameter (json, yaml or toml; json by default).
func (es *ExportService) handlePostExport(w http.ResponseWriter, r *http.Request) {
	if es.shouldProfile {
		defer profile.Start().Stop()
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = defaultDocumentFormat
	}
	if !isSupportedDocumentFormat(format) {
		errorsx.HTTPError(w, es.logger, errorsx.Errorf("unsupported document format %q", format), http.StatusBadRequest)
		return
	}

	doc, err := mapdocument.Parse(http.MaxBytesReader(w, r.Body, maxDocumentSizeBytes), format)
	if err != nil {
		errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	view, err := mapdocument.NewView(es.logger, doc)
	if err != nil {
		errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	es.sema.Add()
	defer es.sema.Done()

	img, err := es.exporter.Export(r.Context(), view)
	if err != nil {
		layerErr, ok := maprasterer.AsLayerError(err)
		if !ok {
			errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusInternalServerError)
			return
		}

		switch layerErr.Kind {
		case maprasterer.ErrorKindCancelled:
			// request cancelled. Nobody is listening for the response
			es.logger.Info("export cancelled: %s", err.Error())
		case maprasterer.ErrorKindDynamicImageFetch, maprasterer.ErrorKindMarkerIconLoad:
			errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusBadGateway)
		default:
			errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	encodeErr := png.Encode(w, img)
	if encodeErr != nil {
		switch encodeErr.(type) {
		case *net.OpError:
			// broken pipe (request cancelled). Do nothing
		default:
			errorsx.HTTPError(w, es.logger, errorsx.Wrap(encodeErr), http.StatusInternalServerError)
		}
		return
	}
}

func isSupportedDocumentFormat(format string) bool {
	for _, supportedFormat := range supportedDocumentFormats {
		if format == supportedFormat {
			return true
		}
	}
	return false
}
