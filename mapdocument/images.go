package mapdocument

import (
	"bytes"
	"image"
	"os"
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/imagefetch"
)

// openLocalImage opens an image that the map has already rendered itself (canvas tiles, heatmaps, overlays).
// ref is a data URL, or a file path relative to the document's BaseDir.
func (d *Document) openLocalImage(ref string) (image.Image, errorsx.Error) {
	if imagefetch.IsDataURL(ref) {
		return imagefetch.DecodeDataURL(ref)
	}

	data, err := d.readLocalFile(ref)
	if err != nil {
		return nil, err
	}

	img, _, decodeErr := image.Decode(bytes.NewReader(data))
	if decodeErr != nil {
		return nil, errorsx.Wrap(decodeErr, "ref", ref)
	}

	return img, nil
}

func (d *Document) readLocalFile(ref string) ([]byte, errorsx.Error) {
	if d.BaseDir == "" {
		return nil, errorsx.Errorf("local file %q can't be used here, only data URLs are allowed", ref)
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.BaseDir, ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsx.Wrap(err, "ref", ref)
	}

	return data, nil
}
