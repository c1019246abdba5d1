// Package pdfdoc extracts page-level text and embedded raster images from PDF
// files.
package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page holds the extracted content of one PDF page.
type Page struct {
	Number int
	Text   string
	Images []Image
}

// Image is a raster image embedded in a page.
type Image struct {
	Data []byte
	MIME string
}

// Read extracts every page of the PDF in r. Pages that fail to parse are
// returned with whatever content could be recovered; a document that cannot
// be opened at all is an error.
func Read(r io.Reader) ([]Page, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := extractPage(reader, i)
		pages = append(pages, page)
	}
	return pages, nil
}

// extractPage isolates per-page parsing; the pdf library panics on some
// malformed objects, so a broken page must not take down the whole document.
func extractPage(reader *pdf.Reader, number int) (page Page) {
	page.Number = number
	defer func() {
		_ = recover()
	}()

	p := reader.Page(number)
	if p.V.IsNull() {
		return page
	}

	if text, err := p.GetPlainText(nil); err == nil {
		page.Text = strings.TrimSpace(text)
	}
	page.Images = pageImages(p)
	return page
}

func pageImages(p pdf.Page) []Image {
	resources := p.Resources()
	if resources.Kind() != pdf.Dict {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	var images []Image
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Kind() != pdf.Stream {
			continue
		}
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}

		stream := obj.Reader()
		data, err := io.ReadAll(stream)
		_ = stream.Close()
		if err != nil || len(data) == 0 {
			continue
		}

		mime := imageMIME(obj, data)
		if mime == "" {
			continue
		}
		images = append(images, Image{Data: data, MIME: mime})
	}
	return images
}

// imageMIME maps the stream filter to a media type the vision model accepts.
// Streams that decode to something other than a standalone image format
// (e.g. raw FlateDecode bitmaps) are skipped.
func imageMIME(obj pdf.Value, data []byte) string {
	filter := obj.Key("Filter")
	name := filter.Name()
	if name == "" && filter.Kind() == pdf.Array && filter.Len() > 0 {
		name = filter.Index(filter.Len() - 1).Name()
	}
	switch name {
	case "DCTDecode":
		return "image/jpeg"
	case "JPXDecode":
		return "image/jp2"
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return ""
}
